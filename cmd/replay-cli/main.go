package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"replaychart/internal/barset"
	"replaychart/internal/config"
	"replaychart/internal/domain"
	"replaychart/internal/store"
	"replaychart/internal/util"
	"replaychart/pkg/replaychart"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: replay-cli <command> [options]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  status     Show replay-server ingest status\n")
		fmt.Fprintf(os.Stderr, "  chart      Summarise the current chart (-grpc: wait for the run to finish)\n")
		fmt.Fprintf(os.Stderr, "  bars       Print bars in a time range (-from, -to epoch seconds)\n")
		fmt.Fprintf(os.Stderr, "  watch      Follow chart updates over gRPC\n")
		fmt.Fprintf(os.Stderr, "  runs       List recent runs from the audit database\n")
		fmt.Fprintf(os.Stderr, "  inspect    Summarise a parquet or msgpack export file\n")
		fmt.Fprintf(os.Stderr, "\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		cfg = config.Default()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	args := os.Args[2:]
	switch os.Args[1] {
	case "version":
		fmt.Printf("replay-cli %s\n", version)

	case "status":
		err = cmdStatus(ctx, cfg, args)

	case "chart":
		err = cmdChart(ctx, cfg, args)

	case "bars":
		err = cmdBars(ctx, cfg, args)

	case "watch":
		err = cmdWatch(ctx, cfg, args)

	case "runs":
		err = cmdRuns(ctx, cfg, args)

	case "inspect":
		err = cmdInspect(args)

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func serverURL(cfg *config.Config) string {
	return fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
}

// fmtTime renders a chart time. Chart times carry Chicago wall clock in UTC
// fields, so they are formatted in UTC and labelled CT.
func fmtTime(t int64) string {
	return time.Unix(t, 0).UTC().Format("2006-01-02 15:04") + " CT"
}

// ---------------------------------------------------------------------------
// HTTP commands
// ---------------------------------------------------------------------------

func cmdStatus(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	addr := fs.String("addr", serverURL(cfg), "replay-server base URL")
	fs.Parse(args)

	st, err := replaychart.NewClient(*addr).GetStatus(ctx)
	if err != nil {
		return err
	}

	state := "loading"
	if st.Done {
		state = "done"
	}
	fmt.Printf("run        %s (%s)\n", st.RunID, state)
	fmt.Printf("symbol     %s  tz %s\n", st.Symbol, st.Timezone)
	fmt.Printf("files      %d loaded / %d skipped / %d total\n", st.Loaded, st.Skipped, st.Files)
	fmt.Printf("records    %s (%s malformed lines)\n", humanize.Comma(int64(st.Records)), humanize.Comma(int64(st.Malformed)))
	fmt.Printf("bars       %s (%d dropped)\n", humanize.Comma(int64(st.Bars)), st.Dropped)
	fmt.Printf("version    %d, %d subscribers\n", st.Version, st.Subscribers)
	if !st.StartedAt.IsZero() {
		fmt.Printf("started    %s\n", humanize.Time(st.StartedAt))
	}
	if st.Error != "" {
		fmt.Printf("error      %s\n", st.Error)
	}
	return nil
}

func cmdChart(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("chart", flag.ExitOnError)
	addr := fs.String("addr", serverURL(cfg), "replay-server base URL")
	grpcAddr := fs.String("grpc", "", "mirror the run over gRPC from this address and summarise the final chart")
	fs.Parse(args)

	if *grpcAddr != "" {
		client := barset.NewClient(*grpcAddr, util.NewLogger("warn", "text", os.Stderr))
		final, err := client.Mirror(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s  %s  version %d  done=%v\n", domain.TargetSymbol, domain.DisplayTimezone, final.Version, final.Done)
		up := 0
		for _, b := range final.Series.Bars {
			if b.Up() {
				up++
			}
		}
		printChartSummary(final.Series.Bars, up)
		return nil
	}

	c, err := replaychart.NewClient(*addr).GetChart(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  version %d  done=%v\n", c.Symbol, c.Timezone, c.Version, c.Done)

	bars := make([]domain.Bar, len(c.Bars))
	up := 0
	for i, b := range c.Bars {
		bars[i] = domain.Bar{Time: b.Time, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
		if i < len(c.Volume) && c.Volume[i].Color == c.Style.Up {
			up++
		}
	}
	printChartSummary(bars, up)
	return nil
}

func printChartSummary(bars []domain.Bar, up int) {
	if len(bars) == 0 {
		fmt.Println("no bars")
		return
	}
	first, last := bars[0], bars[len(bars)-1]
	var vol float64
	for _, b := range bars {
		vol += b.Volume
	}
	fmt.Printf("bars       %s  (%s up / %s down)\n",
		humanize.Comma(int64(len(bars))), humanize.Comma(int64(up)), humanize.Comma(int64(len(bars)-up)))
	fmt.Printf("range      %s .. %s\n", fmtTime(first.Time), fmtTime(last.Time))
	fmt.Printf("open/last  %g / %g\n", first.Open, last.Close)
	fmt.Printf("volume     %s\n", humanize.Comma(int64(vol)))
}

func cmdBars(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("bars", flag.ExitOnError)
	addr := fs.String("addr", serverURL(cfg), "replay-server base URL")
	from := fs.Int64("from", 0, "first bar time, epoch seconds (0 = open)")
	to := fs.Int64("to", 0, "last bar time, epoch seconds (0 = open)")
	limit := fs.Int("n", 50, "max bars to print (0 = all)")
	fs.Parse(args)

	bars, err := replaychart.NewClient(*addr).GetBars(ctx, *from, *to)
	if err != nil {
		return err
	}
	if *limit > 0 && len(bars) > *limit {
		bars = bars[:*limit]
	}

	fmt.Printf("%-20s %10s %10s %10s %10s %8s\n", "TIME", "OPEN", "HIGH", "LOW", "CLOSE", "VOLUME")
	for _, b := range bars {
		fmt.Printf("%-20s %10.2f %10.2f %10.2f %10.2f %8s\n",
			fmtTime(b.Time), b.Open, b.High, b.Low, b.Close, humanize.Comma(int64(b.Volume)))
	}
	return nil
}

// ---------------------------------------------------------------------------
// gRPC
// ---------------------------------------------------------------------------

func cmdWatch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	addr := fs.String("grpc", fmt.Sprintf("localhost:%d", cfg.Server.GRPCPort), "replay-server gRPC address")
	untilDone := fs.Bool("until-done", false, "exit once the run finishes")
	attempts := fs.Int("retries", 5, "connection attempts before giving up")
	fs.Parse(args)

	logger := util.NewLogger("warn", "text", os.Stderr)
	client := barset.NewClient(*addr, logger)

	var lastVersion int64
	show := func(u barset.Update) error {
		lastVersion = u.Version
		line := fmt.Sprintf("v%-4d %s bars", u.Version, humanize.Comma(int64(u.Series.Len())))
		if n := u.Series.Len(); n > 0 {
			line += "  last " + fmtTime(u.Series.Bars[n-1].Time) + fmt.Sprintf(" close %g", u.Series.Bars[n-1].Close)
		}
		if u.Done {
			line += "  [done]"
		}
		fmt.Println(line)
		return nil
	}

	backoff := util.Backoff{Attempts: *attempts, Base: 500 * time.Millisecond, Max: 5 * time.Second}
	return backoff.Retry(ctx, func(attempt int) error {
		if attempt > 0 {
			fmt.Fprintf(os.Stderr, "reconnecting (attempt %d, last version %d)\n", attempt+1, lastVersion)
		}
		err := client.Watch(ctx, *untilDone, show)
		if err != nil && ctx.Err() != nil {
			return util.Permanent(ctx.Err())
		}
		return err
	})
}

// ---------------------------------------------------------------------------
// Local files
// ---------------------------------------------------------------------------

func cmdRuns(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	db := fs.String("db", cfg.Audit.SQLitePath, "audit database path")
	n := fs.Int("n", 10, "number of runs to list")
	files := fs.Bool("files", false, "list per-file events of each run")
	fs.Parse(args)

	if *db == "" {
		return fmt.Errorf("no audit database configured (set audit.sqlite_path or -db)")
	}
	if _, err := os.Stat(*db); err != nil {
		return err
	}

	logger := util.NewLogger("warn", "text", os.Stderr)
	rec, err := store.NewSQLiteRecorder(*db, logger)
	if err != nil {
		return err
	}
	defer rec.Close()

	runs, err := rec.RecentRuns(ctx, *n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	for _, r := range runs {
		took := "running"
		if !r.FinishedAt.IsZero() {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Printf("%s  %-14s  files %d/%d  skipped %d  malformed %d  records %s  (%s)",
			r.RunID, humanize.Time(r.StartedAt), r.Loaded, r.Files, r.Skipped, r.Malformed,
			humanize.Comma(int64(r.Records)), took)
		if r.Error != "" {
			fmt.Printf("  error: %s", r.Error)
		}
		fmt.Println()

		if !*files {
			continue
		}
		events, err := rec.FileEvents(ctx, r.RunID)
		if err != nil {
			return err
		}
		for _, ev := range events {
			detail := fmt.Sprintf("%s, %d added", humanize.Bytes(uint64(ev.Bytes)), ev.Added)
			if ev.Status == "skipped" {
				detail = ev.Error
			}
			fmt.Printf("    %-8s %s  %s\n", ev.Status, ev.File, detail)
		}
	}
	return nil
}

func cmdInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: replay-cli inspect <file.parquet|file.msgpack>")
	}
	path := fs.Arg(0)

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	var records []store.BarRecord
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		records, err = store.ParquetSink{}.Load(path)
	case ".msgpack":
		records, err = store.LoadMsgpack(path)
	default:
		return fmt.Errorf("%s: only .parquet and .msgpack exports can be inspected", path)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s  %s  %s records\n", path, humanize.Bytes(uint64(info.Size())), humanize.Comma(int64(len(records))))
	if len(records) > 0 {
		fmt.Printf("range  %s .. %s\n", fmtTime(records[0].Time), fmtTime(records[len(records)-1].Time))
	}
	return nil
}
