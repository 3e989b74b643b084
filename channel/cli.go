package channel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/linanwx/sharebridge/internal/runtimecfg"
	"github.com/linanwx/sharebridge/logger"
	"github.com/linanwx/sharebridge/share"
)

// CLISource reads shares from a line-oriented reader, stdin by default.
//
//	view <uri>     open a deep link
//	image <path>   share an image file
//	html <markup>  share a rich-text body
//	anything else  share the line as text
type CLISource struct {
	prompt  string
	in      io.Reader
	out     io.Writer
	intents chan *share.Intent
	done    chan struct{}
	once    sync.Once
}

// CLIConfig holds CLI source configuration.
type CLIConfig struct {
	Prompt string    // Input prompt (default: "share> ")
	In     io.Reader // default os.Stdin
	Out    io.Writer // default os.Stdout
}

// NewCLISource creates a new CLI source.
func NewCLISource(cfg CLIConfig) *CLISource {
	prompt := cfg.Prompt
	if prompt == "" {
		prompt = "share> "
	}
	in := cfg.In
	if in == nil {
		in = os.Stdin
	}
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	return &CLISource{
		prompt:  prompt,
		in:      in,
		out:     out,
		intents: make(chan *share.Intent, runtimecfg.CLISourceBufferSize),
		done:    make(chan struct{}),
	}
}

// Name returns the source name.
func (c *CLISource) Name() string {
	return "cli"
}

// Start begins reading input.
func (c *CLISource) Start(ctx context.Context) error {
	logger.Info("cli source started")
	go c.readInput(ctx)
	return nil
}

// Stop stops accepting input. A read already blocked on the reader ends when
// the reader does.
func (c *CLISource) Stop() error {
	c.once.Do(func() {
		close(c.done)
		logger.Info("cli source stopped")
	})
	return nil
}

// Intents returns the incoming intent channel.
func (c *CLISource) Intents() <-chan *share.Intent {
	return c.intents
}

func (c *CLISource) readInput(ctx context.Context) {
	defer close(c.intents)

	scanner := bufio.NewScanner(c.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		fmt.Fprint(c.out, c.prompt)
		if !scanner.Scan() {
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "/exit" || line == "/quit" {
			return
		}

		in, err := parseCLILine(line)
		if err != nil {
			fmt.Fprintf(c.out, "error: %v\n", err)
			continue
		}

		select {
		case c.intents <- in:
		case <-c.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func parseCLILine(line string) (*share.Intent, error) {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "view":
		if rest == "" {
			return nil, fmt.Errorf("usage: view <uri>")
		}
		in := share.NewIntent("cli", share.ActionViewDeepLink)
		in.URI = rest
		return in, nil

	case "image":
		if rest == "" {
			return nil, fmt.Errorf("usage: image <path>")
		}
		data, err := os.ReadFile(rest)
		if err != nil {
			return nil, fmt.Errorf("read image: %w", err)
		}
		mimeType := detectImageMIME(rest, data)
		in := share.NewIntent("cli", share.ActionSendImage)
		in.MIME = mimeType
		in.URI = "file://" + filepath.ToSlash(rest)
		in.Attachments = []share.Attachment{{Name: filepath.Base(rest), MIME: mimeType, Data: data}}
		return in, nil

	case "html":
		if rest == "" {
			return nil, fmt.Errorf("usage: html <markup>")
		}
		in := share.NewIntent("cli", share.ActionSendText)
		in.MIME = "text/html"
		in.HTML = rest
		return in, nil
	}

	in := share.NewIntent("cli", share.ActionSendText)
	in.MIME = "text/plain"
	in.Text = line
	return in, nil
}

func detectImageMIME(path string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "image/") {
		return t
	}
	return http.DetectContentType(data)
}
