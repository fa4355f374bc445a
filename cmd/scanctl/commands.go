package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/peterbourgon/ff/v4"

	"github.com/zombor/scanbridge/internal/client"
	"github.com/zombor/scanbridge/internal/profile"
	"github.com/zombor/scanbridge/internal/protocol"
)

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDriver(s string) (protocol.Driver, error) {
	if s == "" {
		return "", nil
	}
	d, ok := protocol.ParseDriver(s)
	if !ok {
		return "", fmt.Errorf("invalid driver %q", s)
	}
	return d, nil
}

func (a *app) devicesCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("devices").SetParent(parent)
	driver := fs.StringLong("driver", "", "Driver: Default, Apple, Sane, Escl, Wia or Twain")
	all := fs.BoolLong("all", "List the devices of every driver this platform has")
	asJSON := fs.BoolLong("json", "Print JSON")

	return &ff.Command{
		Name:      "devices",
		Usage:     "scanctl devices [--driver DRIVER | --all]",
		ShortHelp: "list scanners",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			d, err := parseDriver(*driver)
			if err != nil {
				return err
			}
			drivers := []protocol.Driver{d}
			if *all {
				if d != "" {
					return errors.New("--all and --driver are mutually exclusive")
				}
				drivers = a.platform.Drivers()
			}

			devices := []protocol.ScannerDevice{}
			for _, d := range drivers {
				found, err := a.client.Scan().ListDevices(ctx, d)
				if err != nil {
					return err
				}
				devices = append(devices, found...)
			}

			if *asJSON {
				return a.printJSON(devices)
			}
			if len(devices) == 0 {
				fmt.Fprintln(a.stdout, "no devices found")
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDRIVER")
			for _, dev := range devices {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", dev.ID, dev.Name, dev.Driver)
			}
			return tw.Flush()
		},
	}
}

func (a *app) scanCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("scan").SetParent(parent)
	var (
		profileName = fs.StringLong("profile", "", "Named profile from the profiles file")
		device      = fs.StringLong("device", "", "Device id as listed by 'scanctl devices'")
		driver      = fs.StringLong("driver", "", "Driver the device belongs to")
		dpi         = fs.IntLong("dpi", 0, "Resolution (default 300)")
		source      = fs.StringLong("source", "", "Paper source: Flatbed, Feeder or Duplex")
		exportDir   = fs.StringLong("export", "", "Export the pages as JPEG files into this directory")
		pdfPath     = fs.StringLong("pdf", "", "Save the pages as a PDF at this path")
		ocrLang     = fs.StringLong("ocr", "", "Recognize the text of each page in this language")
	)

	return &ff.Command{
		Name:      "scan",
		Usage:     "scanctl scan [--profile NAME] [--device ID] [FLAGS]",
		ShortHelp: "scan pages, optionally exporting and recognizing them",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			var p profile.Profile
			if *profileName != "" {
				set, err := a.profiles()
				if err != nil {
					return err
				}
				if p, err = set.Get(*profileName); err != nil {
					return err
				}
			}
			overrideString(&p.Device, *device)
			overrideString(&p.Driver, *driver)
			overrideString(&p.PaperSource, *source)
			overrideString(&p.ExportDir, *exportDir)
			overrideString(&p.PDFPath, *pdfPath)
			overrideString(&p.OCRLanguage, *ocrLang)
			if *dpi != 0 {
				p.DPI = *dpi
			}
			if p.Device == "" {
				return errors.New("a device is required, use --device or --profile")
			}
			if err := p.Validate(); err != nil {
				return err
			}

			cmd := p.Request()
			res, err := a.client.Scan().ScanToImages(ctx, client.ScanRequest{
				DeviceID:    cmd.DeviceID,
				Driver:      cmd.Driver,
				DPI:         cmd.DPI,
				PaperSource: cmd.PaperSource,
			})
			if err != nil {
				return err
			}

			scanID := a.record(cmd, res)
			for _, path := range res.ImagePaths {
				fmt.Fprintln(a.stdout, path)
			}

			if p.ExportDir != "" {
				exported, err := a.client.SaveAsJpeg(ctx, res.ImagePaths, p.ExportDir)
				if err != nil {
					return err
				}
				a.markExported(scanID, exported)
				fmt.Fprintf(a.stdout, "exported %d of %d pages to %s\n", exported.Count, len(res.ImagePaths), exported.Directory)
			}

			if p.PDFPath != "" {
				saved, err := a.client.PDF().Export(ctx, p.PDFPath, res.ImagePaths)
				if err != nil {
					return err
				}
				a.markPdf(scanID, saved)
				fmt.Fprintf(a.stdout, "saved %s to %s\n", plural(saved.PageCount, "page"), saved.Path)
			}

			if p.OCRLanguage != "" {
				for i, path := range res.ImagePaths {
					text, err := a.client.OCR().Recognize(ctx, path, p.OCRLanguage)
					if err != nil {
						return err
					}
					fmt.Fprintf(a.stdout, "--- page %d ---\n%s\n", i+1, text)
				}
			}
			return nil
		},
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// record journals a scan. The journal is bookkeeping; a failure is logged
// and does not fail the scan.
func (a *app) record(req protocol.ScanToImages, res *protocol.ScanResult) string {
	j, err := a.openJournal()
	if err != nil {
		a.logger.Warn("Scan journal unavailable", "error", err)
		return ""
	}
	scan, err := j.Record(req, res)
	if err != nil {
		a.logger.Warn("Failed to record scan", "error", err)
		return ""
	}
	return scan.ID
}

func (a *app) markExported(scanID string, res *protocol.JpegSaveResult) {
	if scanID == "" {
		return
	}
	if _, err := a.journal.MarkExported(scanID, *res); err != nil {
		a.logger.Warn("Failed to record export", "scan", scanID, "error", err)
	}
}

func (a *app) markPdf(scanID string, res *protocol.PdfSaveResult) {
	if scanID == "" {
		return
	}
	if _, err := a.journal.MarkPdf(scanID, *res); err != nil {
		a.logger.Warn("Failed to record PDF", "scan", scanID, "error", err)
	}
}

func (a *app) exportCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("export").SetParent(parent)
	out := fs.StringLong("out", ".", "Output directory")

	return &ff.Command{
		Name:      "export",
		Usage:     "scanctl export [--out DIR] IMAGE...",
		ShortHelp: "convert images to JPEG files",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return errors.New("no images given")
			}
			res, err := a.client.Export().Jpeg(ctx, *out, args)
			if err != nil {
				return err
			}
			for _, f := range res.Files {
				fmt.Fprintln(a.stdout, f)
			}
			if res.Count < len(args) {
				fmt.Fprintf(a.stderr, "%d of %d images could not be exported\n", len(args)-res.Count, len(args))
			}
			return nil
		},
	}
}

func (a *app) pdfCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("pdf").SetParent(parent)

	exportFlags := ff.NewFlagSet("export").SetParent(fs)
	out := exportFlags.StringLong("out", "", "Output PDF path")
	export := &ff.Command{
		Name:      "export",
		Usage:     "scanctl pdf export --out FILE IMAGE...",
		ShortHelp: "combine images into a PDF",
		Flags:     exportFlags,
		Exec: func(ctx context.Context, args []string) error {
			if *out == "" {
				return errors.New("--out is required")
			}
			if len(args) == 0 {
				return errors.New("no images given")
			}
			saved, err := a.client.PDF().Export(ctx, *out, args)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "saved %s to %s\n", plural(saved.PageCount, "page"), saved.Path)
			return nil
		},
	}

	importCmd := &ff.Command{
		Name:      "import",
		Usage:     "scanctl pdf import FILE",
		ShortHelp: "render the pages of a PDF as images",
		Flags:     ff.NewFlagSet("import").SetParent(fs),
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one PDF is required")
			}
			paths, err := a.client.PDF().Import(ctx, args[0])
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(a.stdout, p)
			}
			return nil
		},
	}

	return &ff.Command{
		Name:        "pdf",
		Usage:       "scanctl pdf <SUBCOMMAND>",
		ShortHelp:   "PDF export and import",
		Flags:       fs,
		Subcommands: []*ff.Command{export, importCmd},
	}
}

func (a *app) profilesCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("profiles").SetParent(parent)

	return &ff.Command{
		Name:      "profiles",
		Usage:     "scanctl profiles",
		ShortHelp: "list scan profiles",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			set, err := a.profiles()
			if err != nil {
				return err
			}
			names := set.Names()
			if len(names) == 0 {
				fmt.Fprintf(a.stdout, "no profiles in %s\n", *a.profilesPath)
				return nil
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDEVICE\tDRIVER\tDPI\tSOURCE")
			for _, name := range names {
				p, _ := set.Get(name)
				req := p.Request()
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", name, req.DeviceID, req.Driver, req.DPI, req.PaperSource)
			}
			return tw.Flush()
		},
	}
}

func (a *app) ocrCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("ocr").SetParent(parent)

	langFlags := ff.NewFlagSet("languages").SetParent(fs)
	asJSON := langFlags.BoolLong("json", "Print JSON")
	languages := &ff.Command{
		Name:      "languages",
		Usage:     "scanctl ocr languages",
		ShortHelp: "list OCR languages",
		Flags:     langFlags,
		Exec: func(ctx context.Context, args []string) error {
			langs, err := a.client.OCR().Languages(ctx)
			if err != nil {
				return err
			}
			if *asJSON {
				return a.printJSON(langs)
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tNAME")
			for _, l := range langs {
				fmt.Fprintf(tw, "%s\t%s\n", l.Code, l.Name)
			}
			return tw.Flush()
		},
	}

	recFlags := ff.NewFlagSet("recognize").SetParent(fs)
	lang := recFlags.StringLong("lang", "eng", "Language code")
	recognize := &ff.Command{
		Name:      "recognize",
		Usage:     "scanctl ocr recognize [--lang CODE] IMAGE",
		ShortHelp: "print the text of an image",
		Flags:     recFlags,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return errors.New("exactly one image is required")
			}
			text, err := a.client.OCR().Recognize(ctx, args[0], *lang)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, text)
			return nil
		},
	}

	return &ff.Command{
		Name:        "ocr",
		Usage:       "scanctl ocr <SUBCOMMAND>",
		ShortHelp:   "text recognition",
		Flags:       fs,
		Subcommands: []*ff.Command{languages, recognize},
	}
}

func (a *app) historyCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("history").SetParent(parent)
	asJSON := fs.BoolLong("json", "Print JSON")

	return &ff.Command{
		Name:      "history",
		Usage:     "scanctl history",
		ShortHelp: "list journaled scans",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			j, err := a.openJournal()
			if err != nil {
				return err
			}
			scans, err := j.List()
			if err != nil {
				return err
			}
			if *asJSON {
				return a.printJSON(scans)
			}
			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tCREATED\tPAGES\tDEVICE\tDIRECTORY\tEXPORTED TO")
			for _, s := range scans {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\n",
					s.ID, s.CreatedAt.Local().Format(time.DateTime), len(s.ImagePaths), s.DeviceID, s.TempDirectory, s.ExportDir)
			}
			return tw.Flush()
		},
	}
}

func (a *app) cleanupCmd(parent *ff.FlagSet) *ff.Command {
	fs := ff.NewFlagSet("cleanup").SetParent(parent)
	olderThan := fs.DurationLong("older-than", 0, "Clean up every scan older than this")

	return &ff.Command{
		Name:      "cleanup",
		Usage:     "scanctl cleanup [--older-than DURATION] [SCAN-ID...]",
		ShortHelp: "delete the temporary files of journaled scans",
		Flags:     fs,
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 && *olderThan <= 0 {
				return errors.New("give scan ids or --older-than")
			}
			j, err := a.openJournal()
			if err != nil {
				return err
			}

			var errs []error
			removed := 0
			for _, id := range args {
				if err := j.Cleanup(id); err != nil {
					errs = append(errs, err)
					continue
				}
				removed++
			}
			if *olderThan > 0 {
				n, err := j.CleanupOlderThan(*olderThan)
				removed += n
				if err != nil {
					errs = append(errs, err)
				}
			}
			fmt.Fprintf(a.stdout, "cleaned up %s\n", plural(removed, "scan"))
			return errors.Join(errs...)
		},
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, strings.TrimSuffix(word, "s"))
}
