package http

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/brendan.keane/hreq/internal/config"
	"github.com/brendan.keane/hreq/internal/errors"
)

var (
	statusOKStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#98C379"))

	statusRedirectStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#E5C07B"))

	statusErrorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#E06C75"))

	headerNameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#61AFEF"))

	requestStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ABB2BF"))
)

// responseHandler implements ResponseHandler
type responseHandler struct {
	logger zerolog.Logger
	config *config.Config
	out    io.Writer
	errOut io.Writer
	styled bool
}

// NewResponseHandler creates a response handler. Styling is applied only
// when out is a terminal.
func NewResponseHandler(logger zerolog.Logger, cfg *config.Config, out, errOut io.Writer) ResponseHandler {
	return &responseHandler{
		logger: logger.With().Str("component", "response_handler").Logger(),
		config: cfg,
		out:    out,
		errOut: errOut,
		styled: isTerminal(out),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// HandleResult renders res in the configured output format
func (h *responseHandler) HandleResult(res *Result) error {
	logger := h.logger.With().
		Int("status", res.Status).
		Str("output", h.config.Output).
		Logger()

	var err error
	switch h.config.Output {
	case "json":
		enc := json.NewEncoder(h.out)
		enc.SetIndent("", "  ")
		err = enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(h.out)
		enc.SetIndent(2)
		if err = enc.Encode(res); err == nil {
			err = enc.Close()
		}
	default:
		err = h.writeText(res)
	}
	if err != nil {
		logger.Error().Err(err).Msg("failed to write result")
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to write result")
	}

	logger.Debug().
		Int("body_length", len(res.Body)).
		Bool("verbose", h.config.Verbose).
		Bool("include_headers", h.config.IncludeHeaders).
		Msg("response displayed")
	return nil
}

func (h *responseHandler) writeText(res *Result) error {
	if h.config.Verbose {
		h.showRequestDetails(res)
	}
	if h.config.IncludeHeaders || h.config.Verbose {
		if _, err := fmt.Fprint(h.out, h.renderHead(res)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(h.out, res.Body)
	return err
}

// showRequestDetails writes the request summary to stderr
func (h *responseHandler) showRequestDetails(res *Result) {
	lines := []string{fmt.Sprintf("> %s %s", res.Method, res.URL), "> backend: " + res.Backend}
	for _, header := range res.RequestHeaders {
		lines = append(lines, "> "+header)
	}
	lines = append(lines, ">")
	text := strings.Join(lines, "\n")
	if h.styled {
		text = requestStyle.Render(text)
	}
	fmt.Fprintln(h.errOut, text)
}

// renderHead formats the status line and headers followed by a blank line
func (h *responseHandler) renderHead(res *Result) string {
	var sb strings.Builder
	statusLine := res.StatusLine
	if statusLine == "" {
		statusLine = fmt.Sprintf("HTTP %d", res.Status)
	}
	if h.styled {
		statusLine = statusStyle(res.Status).Render(statusLine)
	}
	sb.WriteString(statusLine)
	sb.WriteString("\n")

	for _, line := range res.Headers {
		if h.styled {
			if name, value, found := strings.Cut(line, ":"); found {
				line = headerNameStyle.Render(name) + ":" + value
			} else {
				line = headerNameStyle.Render(line)
			}
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func statusStyle(status int) lipgloss.Style {
	switch {
	case status >= 400:
		return statusErrorStyle
	case status >= 300:
		return statusRedirectStyle
	default:
		return statusOKStyle
	}
}
