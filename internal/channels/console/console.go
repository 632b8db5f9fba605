// Package console implements a terminal channel for local development
// and operation without a messaging backend.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/golemcore/agentd/pkg/models"
)

// Port writes agent output to a terminal and reads confirmations from
// it. Reads and writes share one reader/writer pair, so all prompt
// interaction is serialized.
type Port struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

// New creates a console port over the given streams.
func New(in io.Reader, out io.Writer) *Port {
	return &Port{in: bufio.NewReader(in), out: out}
}

func (p *Port) ChannelType() models.ChannelType { return models.ChannelConsole }

func (p *Port) SendText(_ context.Context, _ string, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.out, text)
	return err
}

func (p *Port) SendAttachment(_ context.Context, _ string, att models.Attachment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "[attachment: %s %s, %d bytes]\n", att.Type, att.Filename, len(att.Data))
	return err
}

func (p *Port) ShowTyping(context.Context, string) error { return nil }

// Available always reports true; the terminal is always attached.
func (p *Port) Available() bool { return true }

// RequestApproval prompts on the terminal and reads a y/n answer.
func (p *Port) RequestApproval(ctx context.Context, _ string, action, description string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := fmt.Fprintf(p.out, "\n⚠ Approval required: %s\n%s\nAllow? [y/N]: ", action, description); err != nil {
		return false, err
	}

	type answer struct {
		line string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return false, a.err
		}
		resp := strings.ToLower(strings.TrimSpace(a.line))
		return resp == "y" || resp == "yes", nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Notify prints a notice line without waiting for anything.
func (p *Port) Notify(_ string, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "ℹ %s\n", text)
}
