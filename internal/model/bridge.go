package model

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const bridgeStopGrace = 2 * time.Second

// bridgeRequest is one line on the bridge's stdin. The first line carries
// Weights and loads the model; every later line carries Image.
type bridgeRequest struct {
	Weights string `json:"weights,omitempty"`
	Image   string `json:"image,omitempty"`
}

type bridgeResponse struct {
	ClassID    *int              `json:"class_id"`
	Confidence float32           `json:"confidence"`
	Names      map[string]string `json:"names"`
	Error      string            `json:"error,omitempty"`
}

type bridgeProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func (p *bridgeProcess) roundTrip(req bridgeRequest, resp *bridgeResponse) error {
	line, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: failed to encode bridge request: %w", ErrBackendProtocol, err)
	}
	if _, err := p.stdin.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("%w: failed to write to bridge: %w", ErrBackendUnavailable, err)
	}
	reply, err := p.stdout.ReadBytes('\n')
	if err != nil {
		return fmt.Errorf("%w: failed to read from bridge: %w", ErrBackendUnavailable, err)
	}
	if err := json.Unmarshal(reply, resp); err != nil {
		return fmt.Errorf("%w: failed to decode bridge response: %w", ErrBackendProtocol, err)
	}
	return nil
}

// kill stops the process without waiting for in-flight work.
func (p *bridgeProcess) kill() {
	_ = p.stdin.Close()
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
}

// stop closes stdin so the bridge exits on EOF, killing it after a grace period.
func (p *bridgeProcess) stop() error {
	_ = p.stdin.Close()
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(bridgeStopGrace):
		_ = p.cmd.Process.Kill()
		<-done
		return errors.New("bridge did not exit after stdin closed")
	}
}

// BridgeBackend serves Ultralytics .pt weights through one long-lived
// process. The weights are loaded during construction; requests are then
// exchanged as line-delimited JSON, one at a time.
type BridgeBackend struct {
	weightsPath string
	command     []string

	mu     sync.Mutex
	proc   *bridgeProcess
	labels []string
	closed bool
}

func NewBridgeBackend(weightsPath string, command string) (*BridgeBackend, error) {
	info, err := os.Stat(weightsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat weights %q: %w", weightsPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("weights path %q is a directory", weightsPath)
	}
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: bridge command is not configured", ErrBackendUnavailable)
	}
	b := &BridgeBackend{weightsPath: weightsPath, command: parts}
	if err := b.start(); err != nil {
		return nil, err
	}
	return b, nil
}

// start launches the bridge and waits for it to load the weights.
// Callers hold mu, except the constructor.
func (b *BridgeBackend) start() error {
	cmd := exec.Command(b.command[0], b.command[1:]...)
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: failed to start bridge: %w", ErrBackendUnavailable, err)
	}
	proc := &bridgeProcess{cmd: cmd, stdin: stdin, stdout: bufio.NewReader(stdout)}

	var hello bridgeResponse
	if err := proc.roundTrip(bridgeRequest{Weights: b.weightsPath}, &hello); err != nil {
		proc.kill()
		return fmt.Errorf("%w: bridge handshake failed: %w", ErrBackendUnavailable, err)
	}
	if msg := strings.TrimSpace(hello.Error); msg != "" {
		proc.kill()
		return fmt.Errorf("%w: failed to load weights %q: %s", ErrBackendUnavailable, b.weightsPath, msg)
	}
	labels, err := labelsFromMap(hello.Names)
	if err == nil && len(labels) == 0 {
		err = errors.New("no class names")
	}
	if err != nil {
		proc.kill()
		return fmt.Errorf("%w: bridge handshake: %w", ErrBackendProtocol, err)
	}

	b.proc = proc
	b.labels = labels
	return nil
}

func (b *BridgeBackend) Name() string {
	return "ultralytics-bridge"
}

// Labels returns the class names reported when the weights were loaded.
func (b *BridgeBackend) Labels() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.labels...)
}

// PredictFile sends one image path to the bridge. If ctx ends first the
// process is killed, and the next call starts a fresh one.
func (b *BridgeBackend) PredictFile(ctx context.Context, path string) (Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Result{}, fmt.Errorf("%w: backend closed", ErrBackendUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if b.proc == nil {
		if err := b.start(); err != nil {
			return Result{}, err
		}
	}

	type reply struct {
		resp bridgeResponse
		err  error
	}
	proc := b.proc
	done := make(chan reply, 1)
	go func() {
		var r reply
		r.err = proc.roundTrip(bridgeRequest{Image: path}, &r.resp)
		done <- r
	}()

	var r reply
	select {
	case <-ctx.Done():
		proc.kill()
		<-done
		b.proc = nil
		return Result{}, ctx.Err()
	case r = <-done:
	}
	if r.err != nil {
		if errors.Is(r.err, ErrBackendUnavailable) {
			proc.kill()
			b.proc = nil
		}
		return Result{}, r.err
	}

	if msg := strings.TrimSpace(r.resp.Error); msg != "" {
		return Result{}, fmt.Errorf("%w: bridge runtime error: %s", ErrBackendInference, msg)
	}
	if r.resp.ClassID == nil {
		return Result{}, fmt.Errorf("%w: bridge response has no class_id", ErrBackendProtocol)
	}
	classID := *r.resp.ClassID
	if classID < 0 || classID >= len(b.labels) {
		return Result{}, fmt.Errorf("%w: class_id %d outside %d names", ErrBackendProtocol, classID, len(b.labels))
	}
	return Result{
		ClassID:    classID,
		Label:      b.labels[classID],
		Confidence: r.resp.Confidence,
		NumClasses: len(b.labels),
	}, nil
}

func (b *BridgeBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.proc == nil {
		return nil
	}
	proc := b.proc
	b.proc = nil
	return proc.stop()
}
