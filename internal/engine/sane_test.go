package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/scanbridge/internal/protocol"
)

// fakeScanimage records calls and writes batch pages like scanimage does.
type fakeScanimage struct {
	listOutput string
	listErr    error
	pages      int
	scanErr    error
	calls      [][]string
}

func (f *fakeScanimage) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if len(args) > 0 && args[0] == "-f" {
		return []byte(f.listOutput), f.listErr
	}
	for _, a := range args {
		if pattern, ok := strings.CutPrefix(a, "--batch="); ok {
			for n := 1; n <= f.pages; n++ {
				p := strings.Replace(pattern, "%d", fmt.Sprint(n), 1)
				if err := os.WriteFile(p, []byte("png"), 0o600); err != nil {
					return nil, err
				}
			}
		}
	}
	return nil, f.scanErr
}

var _ = Describe("Sane", func() {
	var (
		fake *fakeScanimage
		sane *Sane
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = &fakeScanimage{}
		sane = NewSaneWithRunner("scanimage", fake.run, nil)
	})

	Describe("Devices", func() {
		It("parses the formatted device list", func() {
			fake.listOutput = "epson2:libusb:001:004\tEpson GT-S50\nairscan:e0:Brother\t\n\n"
			devices, err := sane.Devices(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(Equal([]protocol.ScannerDevice{
				{ID: "epson2:libusb:001:004", Name: "Epson GT-S50", Driver: "Sane"},
				{ID: "airscan:e0:Brother", Name: "airscan:e0:Brother", Driver: "Sane"},
			}))
			Expect(fake.calls[0]).To(Equal([]string{"scanimage", "-f", saneListFormat}))
		})

		It("returns no devices when scanimage is missing", func() {
			fake.listErr = fmt.Errorf("scanimage: %w", exec.ErrNotFound)
			devices, err := sane.Devices(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(BeEmpty())
		})

		It("returns other failures", func() {
			fake.listErr = errors.New("exit status 1")
			_, err := sane.Devices(ctx)
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Scan", func() {
		var (
			dir    string
			device protocol.ScannerDevice
		)

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
			device = protocol.ScannerDevice{ID: "epson2:libusb:001:004"}
		})

		It("scans a single flatbed page", func() {
			fake.pages = 1
			pages, err := sane.Scan(ctx, device, ScanOptions{DPI: 200, PaperSource: protocol.PaperSourceFlatbed}, dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(Equal([]string{filepath.Join(dir, "1.png")}))
			Expect(fake.calls[0]).To(ContainElements("--resolution", "200", "--source", "Flatbed", "--batch-count=1"))
		})

		It("scans the feeder until it is empty", func() {
			fake.pages = 3
			pages, err := sane.Scan(ctx, device, ScanOptions{DPI: 300, PaperSource: protocol.PaperSourceFeeder}, dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(3))
			Expect(pages[2]).To(Equal(filepath.Join(dir, "3.png")))
			Expect(fake.calls[0]).To(ContainElements("--source", "ADF"))
			Expect(fake.calls[0]).NotTo(ContainElement("--batch-count=1"))
		})

		It("uses the duplex source", func() {
			fake.pages = 2
			_, err := sane.Scan(ctx, device, ScanOptions{DPI: 300, PaperSource: protocol.PaperSourceDuplex}, dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(fake.calls[0]).To(ContainElement("ADF Duplex"))
		})

		It("keeps pages when scanimage exits non-zero after scanning", func() {
			fake.pages = 2
			fake.scanErr = errors.New("exit status 7")
			pages, err := sane.Scan(ctx, device, ScanOptions{DPI: 300, PaperSource: protocol.PaperSourceFeeder}, dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(pages).To(HaveLen(2))
		})

		It("fails when nothing was scanned", func() {
			fake.scanErr = errors.New("exit status 9: device busy")
			_, err := sane.Scan(ctx, device, ScanOptions{DPI: 300}, dir)
			Expect(err).To(MatchError(ContainSubstring("device busy")))
		})
	})
})
