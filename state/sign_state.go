package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"sync"

	"github.com/aucusaga/gokms/libs"
	"github.com/pkg/errors"
)

// Steps of a round; proposals come first.
const (
	StepNone      int8 = 0 // nothing signed yet
	StepPropose   int8 = 1
	StepPrevote   int8 = 2
	StepPrecommit int8 = 3
)

var (
	ErrDoubleSign       = errors.New("double sign attempt")
	ErrHeightRegression = errors.New("height regression")
	ErrRoundRegression  = errors.New("round regression")
	ErrStepRegression   = errors.New("step regression")
)

// LastSignState is the high-water mark of what the signer has signed.
type LastSignState struct {
	Height    int64  `json:"height,string"`
	Round     int64  `json:"round"`
	Step      int8   `json:"step"`
	SignBytes []byte `json:"signbytes,omitempty"`
	Signature []byte `json:"signature,omitempty"`
}

// CheckHRS returns true when h/r/s equals the last signed one, in which case
// the caller must compare sign bytes before reusing the stored signature.
// Any regression is an error.
func (lss LastSignState) CheckHRS(height, round int64, step int8) (bool, error) {
	if lss.Height > height {
		return false, errors.Wrapf(ErrHeightRegression, "got %d, last %d", height, lss.Height)
	}
	if lss.Height != height {
		return false, nil
	}
	if lss.Round > round {
		return false, errors.Wrapf(ErrRoundRegression, "got %d, last %d at height %d", round, lss.Round, height)
	}
	if lss.Round != round {
		return false, nil
	}
	if lss.Step > step {
		return false, errors.Wrapf(ErrStepRegression, "got %d, last %d at %d/%d", step, lss.Step, height, round)
	}
	if lss.Step < step {
		return false, nil
	}
	if lss.SignBytes == nil {
		return false, errors.Errorf("no sign bytes stored for %d/%d/%d", height, round, step)
	}
	return true, nil
}

func (lss LastSignState) sameSignBytes(signBytes []byte) bool {
	return bytes.Equal(lss.SignBytes, signBytes)
}

func (lss LastSignState) String() string {
	return fmt.Sprintf("LSS{%d/%d/%d}", lss.Height, lss.Round, lss.Step)
}

// SignStateStore persists the last sign state.
type SignStateStore interface {
	Load() (LastSignState, error)
	Save(LastSignState) error
}

// FileSignStateStore keeps the state as JSON; a missing file is an empty state.
type FileSignStateStore struct {
	path string
}

func NewFileSignStateStore(path string) *FileSignStateStore {
	return &FileSignStateStore{path: path}
}

func (f *FileSignStateStore) Load() (LastSignState, error) {
	var lss LastSignState
	data, err := ioutil.ReadFile(f.path)
	if os.IsNotExist(err) {
		return lss, nil
	}
	if err != nil {
		return lss, errors.Wrapf(err, "read sign state %s", f.path)
	}
	if err := json.Unmarshal(data, &lss); err != nil {
		return lss, errors.Wrapf(err, "parse sign state %s", f.path)
	}
	return lss, nil
}

func (f *FileSignStateStore) Save(lss LastSignState) error {
	data, err := json.MarshalIndent(lss, "", "  ")
	if err != nil {
		return err
	}
	return libs.WriteFileAtomic(f.path, data, 0600)
}

// MemSignStateStore keeps the state in memory only.
type MemSignStateStore struct {
	lss LastSignState
	mtx sync.Mutex
}

func (m *MemSignStateStore) Load() (LastSignState, error) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	return m.lss, nil
}

func (m *MemSignStateStore) Save(lss LastSignState) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.lss = lss
	return nil
}
