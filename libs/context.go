package libs

const (
	SignerModule = "gokms"
	// SignerProtocol is the libp2p protocol id of the remote signer link.
	SignerProtocol = "/gokms/signer/1.0.0"
)
