package detect

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/prometheus/procfs"
)

var (
	ErrNoProcess = errors.New("process not found")
	errPanicked  = errors.New("process lookup panicked")
)

// Process is the slice of process metadata the walk needs.
type Process struct {
	PID  int
	PPID int
	Comm string
	Args []string
}

// ProcessTable looks up one process at a time. Implementations return
// ErrNoProcess or a permission error for processes they cannot read.
type ProcessTable interface {
	Lookup(pid int) (Process, error)
}

// ProcTable reads /proc through prometheus/procfs.
type ProcTable struct {
	fs procfs.FS
}

func NewProcTable(mountPoint string) (*ProcTable, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fsys, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("opening procfs at %s: %w", mountPoint, err)
	}
	return &ProcTable{fs: fsys}, nil
}

func (t *ProcTable) Lookup(pid int) (Process, error) {
	p, err := t.fs.Proc(pid)
	if err != nil {
		return Process{}, lookupErr(pid, err)
	}
	stat, err := p.Stat()
	if err != nil {
		return Process{}, lookupErr(pid, err)
	}
	args, err := p.CmdLine()
	if err != nil {
		return Process{}, lookupErr(pid, err)
	}
	return Process{PID: pid, PPID: stat.PPID, Comm: stat.Comm, Args: args}, nil
}

func lookupErr(pid int, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("pid %d: %w", pid, ErrNoProcess)
	}
	return fmt.Errorf("pid %d: %w", pid, err)
}
