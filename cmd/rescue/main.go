// Command rescue recovers files from devices, disk images and forensic
// containers, either by filesystem metadata or by signature carving.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"github.com/schollz/progressbar/v2"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/shubham/diskrescue/internal/carve"
	"github.com/shubham/diskrescue/internal/device"
	"github.com/shubham/diskrescue/internal/disk"
	"github.com/shubham/diskrescue/internal/fat32"
	"github.com/shubham/diskrescue/internal/ntfs"
	"github.com/shubham/diskrescue/internal/sink"
	"github.com/shubham/diskrescue/internal/source"
)

type options struct {
	mode       string
	extensions []string
	nameFilter string
	maxSize    int64
	chunkMB    int
	scanOnly   bool
	stopAtMdat bool
	outputDir  string
}

func main() {
	var opts options
	flag.StringVarP(&opts.mode, "mode", "m", "", "recovery mode: deleted or full")
	flag.StringSliceVarP(&opts.extensions, "extensions", "e", nil, "file extensions to recover (e.g. jpg,pdf,docx)")
	flag.StringVarP(&opts.nameFilter, "name", "n", "", "filename substring to search for")
	flag.Int64VarP(&opts.maxSize, "max-size", "s", 0, "maximum file size in bytes")
	flag.IntVar(&opts.chunkMB, "chunk-size", 64, "chunk size in MB for carving")
	flag.BoolVar(&opts.scanOnly, "scan", false, "scan only, don't recover files")
	flag.BoolVar(&opts.stopAtMdat, "stop-at-mdat", false, "end MP4/MOV carves at the first mdat box")
	flag.StringVarP(&opts.outputDir, "output", "o", "", "output directory (default recovery_output_<timestamp>)")
	interactive := flag.Bool("interactive", false, "start the interactive menu")
	listDevices := flag.Bool("devices", false, "list attached storage devices and exit")
	flag.Usage = usage
	flag.Parse()

	if *listDevices {
		devices, err := device.List()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing devices: %v\n", err)
			os.Exit(1)
		}
		for _, d := range devices {
			fmt.Printf("%-20s %-10s %-8s %s\n", d.Path, d.SizeHuman, d.Filesystem, d.Name)
		}
		return
	}

	if *interactive || (flag.NArg() == 0 && opts.mode == "") {
		runInteractive()
		return
	}

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: source path is required")
		usage()
		os.Exit(1)
	}
	if opts.mode != "deleted" && opts.mode != "full" {
		fmt.Fprintln(os.Stderr, "Error: recovery mode must be 'deleted' or 'full'")
		usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0), opts); err != nil {
		fmt.Fprintf(os.Stderr, "Recovery failed: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: rescue <source> -m <mode> [options]

Modes:
  -m, --mode string        'deleted' (filesystem metadata) or 'full' (carving)

Filters:
  -e, --extensions list    file extensions to recover (e.g. jpg,pdf,docx)
  -n, --name string        filename substring to search for
  -s, --max-size bytes     maximum file size

Options:
      --chunk-size MB      carving chunk size (default 64)
      --scan               list finds without recovering
      --stop-at-mdat       end MP4/MOV carves at the first mdat box
  -o, --output dir         output directory
      --devices            list attached storage devices and exit
      --interactive        start the interactive menu

Examples:
  rescue /dev/sdb1 -m deleted -e jpg,pdf
  rescue disk.img -m full -n important -s 10000000
  rescue image.E01 -m deleted
`)
}

// setupLogging builds the session logger: console plus recovery.log in the
// output directory.
func setupLogging(outputDir string) (*logrus.Logger, func(), error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	logFile, err := os.OpenFile(filepath.Join(outputDir, "recovery.log"),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))
	return log, func() { logFile.Close() }, nil
}

// barObserver adapts the progress bar to the carving engine's observer.
type barObserver struct {
	bar *progressbar.ProgressBar
}

func (b *barObserver) Advance(n int64) { b.bar.Add64(n) }

func run(src string, opts options) error {
	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = "recovery_output_" + time.Now().UTC().Format("20060102_150405")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	log, closeLog, err := setupLogging(outputDir)
	if err != nil {
		return err
	}
	defer closeLog()

	filter := carve.NewFilterOptions(opts.extensions, opts.nameFilter, opts.maxSize)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, err := source.Open(src)
	if err != nil {
		return err
	}
	defer reader.Close()

	var count int
	switch opts.mode {
	case "full":
		count, err = runCarve(ctx, reader, outputDir, filter, opts, log)
	case "deleted":
		count, err = runDeleted(reader, outputDir, filter, opts, log)
	}
	if err != nil {
		return err
	}

	log.Infof("recovery complete: %d files", count)
	fmt.Printf("\nRecovery complete. %d files. Output: %s\n", count, outputDir)
	return nil
}

func runCarve(ctx context.Context, reader carve.RandomReader, outputDir string,
	filter *carve.FilterOptions, opts options, log *logrus.Logger) (int, error) {

	cfg := carve.Config{
		ChunkSize:  opts.chunkMB * 1024 * 1024,
		StopAtMdat: opts.stopAtMdat,
		Logger:     log,
	}
	if !filter.Empty() {
		cfg.Filter = filter
	}
	if !opts.scanOnly {
		out, err := sink.NewDirSink(filepath.Join(outputDir, "carved_files"))
		if err != nil {
			return 0, err
		}
		cfg.Sink = out
	}

	bar := progressbar.NewOptions64(reader.Size(),
		progressbar.OptionSetBytes64(reader.Size()),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	cfg.Progress = &barObserver{bar: bar}

	log.Infof("starting signature carving over %d bytes", reader.Size())
	recovered, err := carve.New(reader, cfg).Run(ctx)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		log.Warnf("carving stopped early: %v", err)
	}
	return int(recovered), nil
}

func runDeleted(reader carve.RandomReader, outputDir string,
	filter *carve.FilterOptions, opts options, log *logrus.Logger) (int, error) {

	fsType, err := disk.DetectFilesystem(reader)
	if err != nil {
		return 0, fmt.Errorf("could not detect filesystem: %w", err)
	}
	log.Infof("detected filesystem: %s", fsType)

	var active carve.Filter
	if !filter.Empty() {
		active = filter
	}
	outDir := filepath.Join(outputDir, "deleted_files")
	if !opts.scanOnly {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return 0, err
		}
	}

	switch fsType {
	case "ntfs":
		return ntfs.Recover(reader, outDir, active, opts.scanOnly, log)
	case "fat32":
		return fat32.Recover(reader, outDir, active, opts.scanOnly, log)
	default:
		return 0, fmt.Errorf("unsupported filesystem: %s", fsType)
	}
}

// runInteractive drives the menu the tool shows when launched without
// arguments.
func runInteractive() {
	fmt.Println("==============================================")
	fmt.Println("        DISK RESCUE - FILE RECOVERY")
	fmt.Println("==============================================")
	fmt.Println("1. Recover deleted files (filesystem metadata)")
	fmt.Println("2. Full drive carving (signature scanning)")
	fmt.Println("3. Help")
	fmt.Println("4. Exit")

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	defer line.Close()

	for {
		choice, err := line.Prompt("Select an option (1-4): ")
		if err != nil {
			return
		}
		switch strings.TrimSpace(choice) {
		case "1", "2":
			opts, src, ok := promptOptions(line, strings.TrimSpace(choice) == "1")
			if !ok {
				continue
			}
			if err := run(src, opts); err != nil {
				fmt.Fprintf(os.Stderr, "Recovery failed: %v\n", err)
			}
		case "3":
			usage()
		case "4":
			return
		default:
			fmt.Println("Invalid choice, select 1-4.")
		}
	}
}

func promptOptions(line *liner.State, deleted bool) (options, string, bool) {
	var opts options
	opts.chunkMB = 64
	if deleted {
		opts.mode = "deleted"
	} else {
		opts.mode = "full"
	}

	src, err := line.Prompt("Source path (device or image): ")
	if err != nil || strings.TrimSpace(src) == "" {
		fmt.Println("Source path is required.")
		return opts, "", false
	}
	src = strings.TrimSpace(src)

	if exts, err := line.Prompt("Extensions to recover (comma separated, empty for all): "); err == nil {
		for _, e := range strings.Split(exts, ",") {
			if e = strings.TrimSpace(e); e != "" {
				opts.extensions = append(opts.extensions, e)
			}
		}
	}
	if name, err := line.Prompt("Filename contains (empty for all): "); err == nil {
		opts.nameFilter = strings.TrimSpace(name)
	}
	if sizeStr, err := line.Prompt("Maximum file size in bytes (empty for no limit): "); err == nil {
		if sizeStr = strings.TrimSpace(sizeStr); sizeStr != "" {
			if size, err := strconv.ParseInt(sizeStr, 10, 64); err == nil {
				opts.maxSize = size
			} else {
				fmt.Println("Invalid size, ignoring max size filter.")
			}
		}
	}
	if !deleted {
		if chunkStr, err := line.Prompt("Chunk size in MB (default 64): "); err == nil {
			if chunkStr = strings.TrimSpace(chunkStr); chunkStr != "" {
				if mb, err := strconv.Atoi(chunkStr); err == nil && mb > 0 {
					opts.chunkMB = mb
				} else {
					fmt.Println("Invalid chunk size, using default 64MB.")
				}
			}
		}
	}
	return opts, src, true
}
