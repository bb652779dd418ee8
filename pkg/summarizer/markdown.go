package summarizer

import (
	"fmt"
	"strings"
)

// Formatter defines the interface for formatting a Summary.
type Formatter interface {
	// Format converts a Summary to a formatted string.
	Format(summary *Summary) string
}

// FormatFunc is a function adapter for the Formatter interface.
type FormatFunc func(summary *Summary) string

// Format implements the Formatter interface.
func (f FormatFunc) Format(summary *Summary) string {
	return f(summary)
}

// MarkdownFormatter renders a Summary as Markdown tables.
type MarkdownFormatter struct {
	t func(string) string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator translates headings and labels, e.g. with l10n.T.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.t = t
	}
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{t: func(s string) string { return s }}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", f.t("Conversion Summary"))
	fmt.Fprintf(&b, "%s: %s\n", f.t("Generated"), s.GeneratedAt.Format("2006-01-02 15:04:05"))
	if s.RunID != "" {
		fmt.Fprintf(&b, "%s: `%s`\n", f.t("Run ID"), s.RunID)
	}
	b.WriteString("\n")

	f.section(&b, "Result")
	if s.Succeeded() {
		o := s.Output
		f.row(&b, "Status", f.t("Succeeded"))
		f.row(&b, "Output", o.Path)
		f.row(&b, "Conversion Path", o.Route)
		f.row(&b, "Encoder", o.Encoder)
		f.row(&b, "Capture Mode", orNone(f, o.CaptureMode))
		f.row(&b, "Frame Count", fmt.Sprintf("%d", o.Frames))
		f.row(&b, "Output Size", fmt.Sprintf("%dx%d", o.Width, o.Height))
		f.row(&b, "Elapsed", fmt.Sprintf("%d ms", o.DurationMs))
		f.row(&b, "File Size", formatBytes(o.FileSize))
	} else {
		status := f.t("Failed")
		if s.Failure.Cancelled {
			status = f.t("Cancelled")
		}
		f.row(&b, "Status", status)
		if !s.Failure.Cancelled {
			f.row(&b, "Failure Phase", s.Failure.Phase)
		}
		f.row(&b, "Error", escape(s.Failure.Message))
	}
	b.WriteString("\n")

	f.section(&b, "Source")
	src := s.Source
	f.row(&b, "File", src.Path)
	f.row(&b, "Codec", orNone(f, src.Codec))
	f.row(&b, "Container", orNone(f, src.Container))
	if src.Width > 0 && src.Height > 0 {
		f.row(&b, "Resolution", fmt.Sprintf("%dx%d", src.Width, src.Height))
	} else {
		f.row(&b, "Resolution", "N/A")
	}
	if src.Duration > 0 {
		f.row(&b, "Duration", fmt.Sprintf("%.2f s", src.Duration))
	} else {
		f.row(&b, "Duration", "N/A")
	}
	if src.FrameRate > 0 {
		f.row(&b, "Frame Rate", fmt.Sprintf("%.2f fps", src.FrameRate))
	}
	b.WriteString("\n")

	f.section(&b, "Settings")
	st := s.Settings
	f.row(&b, "Format", st.Format)
	f.row(&b, "Quality", st.Quality)
	f.row(&b, "Scale", fmt.Sprintf("%.2f", st.Scale))
	if st.FPS > 0 {
		f.row(&b, "Target FPS", fmt.Sprintf("%.2f", st.FPS))
	} else {
		f.row(&b, "Target FPS", f.t("Default"))
	}
	if st.MaxFrames > 0 {
		f.row(&b, "Max Frames", fmt.Sprintf("%d", st.MaxFrames))
	}
	f.row(&b, "Capture Mode", orNone(f, st.CaptureMode))
	if st.ForcedPath != "" {
		f.row(&b, "Forced Path", st.ForcedPath)
	} else {
		f.row(&b, "Forced Path", f.t("Automatic"))
	}
	fallback := f.t("Enabled")
	if st.DisableFallback {
		fallback = f.t("Disabled")
	}
	f.row(&b, "Fallback", fallback)

	if len(s.Attempts) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "## %s\n\n", f.t("Attempts"))
		fmt.Fprintf(&b, "| # | %s | %s | %s | %s | %s | %s |\n",
			f.t("Conversion Path"), f.t("Encoder"), f.t("Capture Mode"), f.t("Frame Count"), f.t("Elapsed"), f.t("Error"))
		b.WriteString("|---|---|---|---|---|---|---|\n")
		for i, a := range s.Attempts {
			errText := "-"
			if a.Error != "" {
				errText = escape(a.Error)
			}
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %d | %d ms | %s |\n",
				i+1, a.Path, dash(a.Encoder), dash(string(a.CaptureMode)), a.Frames, a.DurationMs, errText)
		}
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "*%s vidloop*\n", f.t("Generated by"))
	return b.String()
}

func (f *MarkdownFormatter) section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "## %s\n\n", f.t(title))
	fmt.Fprintf(b, "| %s | %s |\n", f.t("Item"), f.t("Value"))
	b.WriteString("|---|---|\n")
}

func (f *MarkdownFormatter) row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", f.t(label), value)
}

func orNone(f *MarkdownFormatter, s string) string {
	if s == "" {
		return f.t("None")
	}
	return s
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// escape keeps a message inside one table cell.
func escape(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
