package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/strokerehab/internal/pose"
)

// ErrNoCommand is returned when no estimator command is configured.
var ErrNoCommand = errors.New("no pose estimator command configured")

// ProcessDetector implements Detector with an estimator subprocess.
type ProcessDetector struct {
	config Config

	mu        sync.Mutex
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	idleTimer *time.Timer
}

// NewProcessDetector creates a detector. The estimator is started lazily
// on first detection.
func NewProcessDetector(config Config) (*ProcessDetector, error) {
	if len(config.Command) == 0 || config.Command[0] == "" {
		return nil, ErrNoCommand
	}
	return &ProcessDetector{config: config}, nil
}

func (d *ProcessDetector) Detect(img *gocv.Mat) ([]pose.Landmark, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	landmarks, err := d.roundTrip(buf.GetBytes())
	if err != nil {
		// The stream is out of sync; the next call starts a fresh process.
		d.shutdown()
		return nil, err
	}

	d.resetIdleTimer()
	return usable(landmarks, d.config.MinVisibility), nil
}

func (d *ProcessDetector) roundTrip(data []byte) ([]pose.Landmark, error) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))

	if _, err := d.stdin.Write(length[:]); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write image: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var response struct {
		Landmarks []pose.Landmark `json:"landmarks"`
		Error     string          `json:"error"`
	}
	if err := json.Unmarshal([]byte(line), &response); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if response.Error != "" {
		return nil, fmt.Errorf("pose estimator: %s", response.Error)
	}
	return response.Landmarks, nil
}

// Close stops the estimator process.
func (d *ProcessDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shutdown()
}

// Running reports whether the estimator process is up.
func (d *ProcessDetector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cmd != nil
}

func (d *ProcessDetector) ensureStarted() error {
	if d.cmd != nil {
		return nil
	}

	cmd := exec.Command(d.config.Command[0], d.config.Command[1:]...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pose estimator: %w", err)
	}
	slog.Debug("pose estimator started", "command", d.config.Command, "pid", cmd.Process.Pid)

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	return nil
}

func (d *ProcessDetector) shutdown() error {
	if d.cmd == nil {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	d.stdin.Close()
	err := d.cmd.Wait()

	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	return err
}

func (d *ProcessDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		slog.Debug("pose estimator idle, stopping")
		d.shutdown()
	})
}
