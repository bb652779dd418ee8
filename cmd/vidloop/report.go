package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ideamans/go-l10n"

	"github.com/user/vidloop/pkg/pipeline"
	"github.com/user/vidloop/pkg/ports"
	"github.com/user/vidloop/pkg/vidloop"
)

func printMetadata(out io.Writer, meta pipeline.VideoMetadata) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "%s\t%s\n", l10n.T("Codec"), orUnknown(meta.Codec))
	fmt.Fprintf(tw, "%s\t%s\n", l10n.T("Container"), orUnknown(meta.Container))
	fmt.Fprintf(tw, "%s\t%dx%d\n", l10n.T("Resolution"), meta.Width, meta.Height)
	if meta.HasDuration() {
		fmt.Fprintf(tw, "%s\t%.2f s\n", l10n.T("Duration"), meta.Duration)
	} else {
		fmt.Fprintf(tw, "%s\t%s\n", l10n.T("Duration"), l10n.T("unknown"))
	}
	fmt.Fprintf(tw, "%s\t%.2f fps\n", l10n.T("Frame Rate"), meta.FrameRate)
	if meta.Bitrate > 0 {
		fmt.Fprintf(tw, "%s\t%d kbps\n", l10n.T("Bitrate"), meta.Bitrate/1000)
	}
}

func printSnapshot(out io.Writer, snap ports.Snapshot) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "%s\t%s\n", l10n.T("Hardware decode"), joinTrue(snap.HardwareDecode))
	formats := make(map[string]bool, len(snap.FormatEncode))
	for f, ok := range snap.FormatEncode {
		formats[string(f)] = ok
	}
	fmt.Fprintf(tw, "%s\t%s\n", l10n.T("Format encode"), joinTrue(formats))
	fmt.Fprintf(tw, "%s\t%d\n", l10n.T("Workers"), snap.Workers)
	fmt.Fprintf(tw, "%s\t%t\n", l10n.T("Low memory"), snap.LowMemory)
	fmt.Fprintf(tw, "%s\t%t\n", l10n.T("Mobile heritage"), snap.MobileHeritage)
	if snap.DeviceMemoryBytes > 0 {
		fmt.Fprintf(tw, "%s\t%d MiB\n", l10n.T("Device memory"), snap.DeviceMemoryBytes>>20)
	}
}

func printEncoders(out io.Writer, reports []vidloop.EncoderReport) {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l10n.T("Format"), l10n.T("Encoder"), l10n.T("Score"), l10n.T("Available"))
	for _, r := range reports {
		fmt.Fprintf(tw, "%s\t%s\t%.1f\t%t\n", r.Format, r.Name, r.Score, r.Available)
	}
}

func printHistory(out io.Writer, records []pipeline.ConversionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, l10n.T("No conversion history yet"))
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", l10n.T("Time"), l10n.T("Codec"), l10n.T("Format"),
		l10n.T("Path"), l10n.T("Encoder"), l10n.T("Outcome"), l10n.T("Elapsed"))
	for _, r := range records {
		outcome := l10n.T("success")
		switch {
		case r.Cancelled():
			outcome = l10n.T("cancelled")
		case !r.Success:
			outcome = l10n.F("failed (%s)", r.FailurePhase)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d ms\n", r.Timestamp.Format("2006-01-02 15:04:05"),
			orUnknown(r.Codec), r.Format, r.Path, orUnknown(r.Encoder), outcome, r.DurationMs)
	}
}

func joinTrue(m map[string]bool) string {
	var keys []string
	for k, ok := range m {
		if ok {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "-"
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}

func orUnknown(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
