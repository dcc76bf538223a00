package main

import (
	"fmt"
	"os"

	"github.com/aucusaga/gokms/gokms/cmd"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd, err := NewServiceCommand()
	if err != nil {
		fmt.Print("start service failed\n")
		os.Exit(1)
	}

	if err = rootCmd.Execute(); err != nil {
		fmt.Printf("cmd fail, err: %v\n", err)
		os.Exit(1)
	}
}

func NewServiceCommand() (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:           "gokms <command> [arguments]",
		Short:         "gokms is a remote signer which signs consensus proposals for validator nodes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example:       "gokms start --conf /home/rd/gokms/conf",
	}

	// cmd service
	rootCmd.AddCommand(cmd.GetStartCmd().Cmd)
	rootCmd.AddCommand(cmd.GetKeyCmd().Cmd)
	rootCmd.AddCommand(cmd.GetAddressCmd().Cmd)
	rootCmd.AddCommand(cmd.GetSignCmd().Cmd)
	rootCmd.AddCommand(cmd.GetPingCmd().Cmd)

	return rootCmd, nil
}
