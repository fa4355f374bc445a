package client_test

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/scanbridge/internal/client"
)

var _ = Describe("Helper process", func() {
	var (
		c       *client.Client
		tempDir string
		env     []string
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tempDir = GinkgoT().TempDir()
		env = []string{helperEnv + "=1", "SCANBRIDGE_TEST_TEMP=" + tempDir}
	})

	JustBeforeEach(func() {
		c = client.New(os.Args[0], client.WithEnv(env...), client.WithTimeout(30*time.Second))
	})

	When("no scanners are attached", func() {
		It("lists no devices", func() {
			devices, err := c.Scan().ListDevices(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).NotTo(BeNil())
			Expect(devices).To(BeEmpty())
		})

		It("lists no devices for a driver the platform lacks", func() {
			devices, err := c.Scan().ListDevices(ctx, "Twain")
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).To(BeEmpty())
		})

		It("reports an unknown device", func() {
			_, err := c.Scan().ScanToImages(ctx, client.ScanRequest{DeviceID: "zzz"})
			Expect(errors.Is(err, client.ErrDeviceNotFound)).To(BeTrue())
		})
	})

	When("a scanner is attached", func() {
		BeforeEach(func() {
			env = append(env, devicesEnv+"=abc")
		})

		It("scans into a new directory", func() {
			res, err := c.Scan().ScanToImages(ctx, client.ScanRequest{DeviceID: "abc", DPI: 300})
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Dir(res.TempDirectory)).To(Equal(tempDir))
			Expect(res.ImagePaths).To(Equal([]string{filepath.Join(res.TempDirectory, "1.png")}))
			Expect(res.ImagePaths[0]).To(BeAnExistingFile())
		})
	})

	When("the export directory cannot be created", func() {
		It("returns the failed result", func() {
			blocker := filepath.Join(tempDir, "blocker")
			Expect(os.WriteFile(blocker, []byte("x"), 0o600)).To(Succeed())

			res, err := c.Export().Jpeg(ctx, filepath.Join(blocker, "out"), []string{filepath.Join(tempDir, "1.png")})
			Expect(errors.Is(err, client.ErrExportFailed)).To(BeTrue())
			Expect(res.Success).To(BeFalse())
		})
	})

	When("exporting and importing a PDF", func() {
		It("round-trips the pages", func() {
			page := filepath.Join(tempDir, "page.png")
			img := image.NewGray(image.Rect(0, 0, 16, 16))
			f, err := os.Create(page)
			Expect(err).NotTo(HaveOccurred())
			Expect(png.Encode(f, img)).To(Succeed())
			Expect(f.Close()).To(Succeed())

			doc := filepath.Join(tempDir, "out", "scan.pdf")
			saved, err := c.PDF().Export(ctx, doc, []string{page, page})
			Expect(err).NotTo(HaveOccurred())
			Expect(saved.Path).To(Equal(doc))
			Expect(saved.PageCount).To(Equal(2))

			paths, err := c.PDF().Import(ctx, doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(paths).To(HaveLen(2))
			Expect(filepath.Dir(filepath.Dir(paths[0]))).To(Equal(tempDir))
			Expect(paths[1]).To(BeAnExistingFile())
		})

		It("reports a file that is not a PDF", func() {
			notPDF := filepath.Join(tempDir, "notes.txt")
			Expect(os.WriteFile(notPDF, []byte("hello"), 0o600)).To(Succeed())
			_, err := c.PDF().Import(ctx, notPDF)
			Expect(errors.Is(err, client.ErrImportFailed)).To(BeTrue())
		})
	})

	When("no OCR engine is configured", func() {
		It("reports the operation as unsupported", func() {
			_, err := c.OCR().Languages(ctx)
			Expect(errors.Is(err, client.ErrUnsupported)).To(BeTrue())
		})
	})

	When("the call is canceled before the helper starts", func() {
		It("reports a timeout", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.Scan().ListDevices(canceled, "")
			Expect(errors.Is(err, client.ErrTimeout)).To(BeTrue())
			Expect(errors.Is(err, client.ErrSpawn)).To(BeFalse())
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	When("the helper is missing", func() {
		It("reports a spawn error", func() {
			missing := client.New(filepath.Join(tempDir, "no-such-helper"))
			_, err := missing.Scan().ListDevices(ctx, "")
			Expect(errors.Is(err, client.ErrSpawn)).To(BeTrue())
		})
	})
})
