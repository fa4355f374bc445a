package client_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/scanbridge/internal/client"
	"github.com/zombor/scanbridge/internal/invoker"
	"github.com/zombor/scanbridge/internal/protocol"
)

// fakeRunner is a mock implementation of invoker.Runner
type fakeRunner struct {
	result *invoker.Result
	err    error
	path   string
	args   [][]string
	wait   bool
}

func (f *fakeRunner) Run(ctx context.Context, path string, args []string) (*invoker.Result, error) {
	f.path = path
	f.args = append(f.args, args)
	if f.wait {
		<-ctx.Done()
		return &invoker.Result{ExitCode: -1}, ctx.Err()
	}
	return f.result, f.err
}

// slowRunner takes hold to answer each call, or fails once the call's
// context ends.
type slowRunner struct {
	hold time.Duration
}

func (r *slowRunner) Run(ctx context.Context, path string, args []string) (*invoker.Result, error) {
	select {
	case <-time.After(r.hold):
		return stdout("[]"), nil
	case <-ctx.Done():
		return &invoker.Result{ExitCode: -1}, ctx.Err()
	}
}

func stdout(s string) *invoker.Result {
	return &invoker.Result{Stdout: []byte(s)}
}

var _ = Describe("Client", func() {
	var (
		runner *fakeRunner
		c      *client.Client
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = &fakeRunner{}
		c = client.New("/opt/scanbridge/helper", client.WithRunner(runner), client.WithTimeout(time.Second))
	})

	Describe("Scan().ListDevices", func() {
		for _, d := range append([]protocol.Driver{""}, protocol.AllDrivers...) {
			It("returns an empty list for "+string(d)+" when the helper reports none", func() {
				runner.result = stdout("[]")
				devices, err := c.Scan().ListDevices(ctx, d)
				Expect(err).NotTo(HaveOccurred())
				Expect(devices).NotTo(BeNil())
				Expect(devices).To(BeEmpty())
			})
		}

		It("passes the canonical driver name", func() {
			runner.result = stdout(`[{"Id":"abc","Name":"Epson","Driver":"Wia"}]`)
			devices, err := c.Scan().ListDevices(ctx, protocol.DriverWia)
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.path).To(Equal("/opt/scanbridge/helper"))
			Expect(runner.args[0]).To(Equal([]string{"scan", "list-devices", "Wia"}))
			Expect(devices).To(Equal([]protocol.ScannerDevice{{ID: "abc", Name: "Epson", Driver: "Wia"}}))
		})

		It("rejects malformed output", func() {
			runner.result = stdout("Scanning...")
			_, err := c.Scan().ListDevices(ctx, "")
			Expect(errors.Is(err, client.ErrHelperOutput)).To(BeTrue())
			Expect(protocol.IsDecodeError(err)).To(BeTrue())
		})
	})

	Describe("Scan().ScanToImages", func() {
		It("returns the paths verbatim", func() {
			runner.result = stdout(`{"ImagePaths":["/tmp/s/1.png","/tmp/s/2.png"],"TempDirectory":"/tmp/s"}`)
			res, err := c.Scan().ScanToImages(ctx, client.ScanRequest{DeviceID: "abc", DPI: 300, PaperSource: protocol.PaperSourceFeeder})
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.args[0]).To(Equal([]string{"scan", "to-images", "abc", "", "300", "Feeder"}))
			Expect(res.ImagePaths).To(Equal([]string{"/tmp/s/1.png", "/tmp/s/2.png"}))
			Expect(res.TempDirectory).To(Equal("/tmp/s"))
		})

		It("reports a missing TempDirectory as a helper output error", func() {
			runner.result = stdout(`{"ImagePaths":["/tmp/s/1.png"]}`)
			_, err := c.Scan().ScanToImages(ctx, client.ScanRequest{DeviceID: "abc"})
			Expect(errors.Is(err, client.ErrHelperOutput)).To(BeTrue())
		})

		It("maps a DeviceNotFound payload", func() {
			runner.result = stdout(`{"Error":"device \"zzz\" (driver Sane): device not found","Kind":"DeviceNotFound","StackTrace":""}`)
			_, err := c.Scan().ScanToImages(ctx, client.ScanRequest{DeviceID: "zzz"})
			Expect(errors.Is(err, client.ErrDeviceNotFound)).To(BeTrue())

			var re *protocol.RemoteError
			Expect(errors.As(err, &re)).To(BeTrue())
			Expect(re.Kind).To(Equal(protocol.KindDeviceNotFound))
		})

		It("maps a kind-less error payload to ErrDomain", func() {
			runner.result = stdout(`{"Error":"twain session failed","StackTrace":"at Twain.Open()"}`)
			_, err := c.Scan().ScanToImages(ctx, client.ScanRequest{DeviceID: "abc"})
			Expect(errors.Is(err, client.ErrDomain)).To(BeTrue())
		})

		It("rejects an empty device id without spawning", func() {
			_, err := c.Scan().ScanToImages(ctx, client.ScanRequest{})
			Expect(errors.Is(err, client.ErrInvalidRequest)).To(BeTrue())
			Expect(runner.args).To(BeEmpty())
		})
	})

	Describe("helper failures", func() {
		It("reports a non-zero exit with the stderr text", func() {
			runner.result = &invoker.Result{ExitCode: 3, Stderr: []byte("device busy\n")}
			_, err := c.Scan().ListDevices(ctx, "")

			Expect(errors.Is(err, client.ErrHelperExecution)).To(BeTrue())
			var cerr *client.Error
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.Message).To(Equal("device busy"))
			Expect(cerr.ExitCode).To(Equal(3))
			Expect(cerr.Stderr).To(Equal("device busy"))
		})

		It("reports spawn failures", func() {
			runner.err = &invoker.SpawnError{Path: "/opt/scanbridge/helper", Err: errors.New("no such file or directory")}
			_, err := c.Scan().ListDevices(ctx, "")

			Expect(errors.Is(err, client.ErrSpawn)).To(BeTrue())
			var spawnErr *invoker.SpawnError
			Expect(errors.As(err, &spawnErr)).To(BeTrue())
		})

		It("reports timeouts", func() {
			runner.wait = true
			c = client.New("/opt/scanbridge/helper", client.WithRunner(runner), client.WithTimeout(20*time.Millisecond))
			_, err := c.Scan().ListDevices(ctx, "")

			Expect(errors.Is(err, client.ErrTimeout)).To(BeTrue())
			Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
		})

		It("starts the timeout once the previous call has finished", func() {
			c = client.New("/opt/scanbridge/helper", client.WithRunner(&slowRunner{hold: 200 * time.Millisecond}), client.WithTimeout(300*time.Millisecond))

			errs := make(chan error, 2)
			for range 2 {
				go func() {
					_, err := c.Scan().ListDevices(context.Background(), "")
					errs <- err
				}()
			}

			Eventually(errs, 2*time.Second).Should(Receive(BeNil()))
			Eventually(errs, 2*time.Second).Should(Receive(BeNil()))
		})
	})

	Describe("Export().Jpeg", func() {
		It("returns the result", func() {
			runner.result = stdout(`{"Success":true,"Directory":"/out","Files":["/out/1.jpg"],"Count":1}`)
			res, err := c.SaveAsJpeg(ctx, []string{"/tmp/s/1.png", "/tmp/s/2.png"}, "/out")
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.args[0]).To(Equal([]string{"pdf", "jpeg", "/out", "/tmp/s/1.png", "/tmp/s/2.png"}))
			Expect(res.Files).To(Equal([]string{"/out/1.jpg"}))
		})

		It("returns the result and ErrExportFailed when the helper reports failure", func() {
			runner.result = stdout(`{"Success":false,"Directory":"/out","Files":[],"Count":0,"Error":"creating storage directory: permission denied"}`)
			res, err := c.Export().Jpeg(ctx, "/out", []string{"/tmp/s/1.png"})
			Expect(errors.Is(err, client.ErrExportFailed)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("permission denied")))
			Expect(res).NotTo(BeNil())
			Expect(res.Success).To(BeFalse())
		})

		It("rejects a result whose Count disagrees with Files", func() {
			runner.result = stdout(`{"Success":true,"Directory":"/out","Files":["/out/1.jpg"],"Count":2}`)
			_, err := c.Export().Jpeg(ctx, "/out", []string{"/tmp/s/1.png"})
			Expect(errors.Is(err, client.ErrHelperOutput)).To(BeTrue())
		})
	})

	Describe("PDF", func() {
		It("exports images into a PDF", func() {
			runner.result = stdout(`{"Path":"/out/scan.pdf","PageCount":2}`)
			res, err := c.PDF().Export(ctx, "/out/scan.pdf", []string{"/tmp/s/1.png", "/tmp/s/2.png"})
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.args[0]).To(Equal([]string{"pdf", "export", "/out/scan.pdf", "/tmp/s/1.png", "/tmp/s/2.png"}))
			Expect(res).To(Equal(&protocol.PdfSaveResult{Path: "/out/scan.pdf", PageCount: 2}))
		})

		It("maps an ExportFailed payload", func() {
			runner.result = stdout(`{"Error":"/tmp/s/2.png: decoding image: unexpected EOF","Kind":"ExportFailed","StackTrace":""}`)
			_, err := c.PDF().Export(ctx, "/out/scan.pdf", []string{"/tmp/s/2.png"})
			Expect(errors.Is(err, client.ErrExportFailed)).To(BeTrue())
			Expect(err).To(MatchError(ContainSubstring("unexpected EOF")))
		})

		It("rejects an export without images before spawning", func() {
			_, err := c.PDF().Export(ctx, "/out/scan.pdf", nil)
			Expect(errors.Is(err, client.ErrInvalidRequest)).To(BeTrue())
			Expect(runner.args).To(BeEmpty())
		})

		It("imports the pages of a PDF", func() {
			runner.result = stdout(`["/tmp/scanbridge-x/1.png","/tmp/scanbridge-x/2.png"]`)
			paths, err := c.PDF().Import(ctx, "/in/doc.pdf")
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.args[0]).To(Equal([]string{"pdf", "import", "/in/doc.pdf"}))
			Expect(paths).To(Equal([]string{"/tmp/scanbridge-x/1.png", "/tmp/scanbridge-x/2.png"}))
		})

		It("maps an ImportFailed payload", func() {
			runner.result = stdout(`{"Error":"opening PDF: broken xref","Kind":"ImportFailed","StackTrace":""}`)
			_, err := c.PDF().Import(ctx, "/in/doc.pdf")
			Expect(errors.Is(err, client.ErrImportFailed)).To(BeTrue())
		})
	})

	Describe("OCR", func() {
		It("lists languages", func() {
			runner.result = stdout(`[{"code":"eng","name":"English"}]`)
			langs, err := c.OCR().Languages(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.args[0]).To(Equal([]string{"ocr", "languages"}))
			Expect(langs).To(Equal([]protocol.OcrLanguage{{Code: "eng", Name: "English"}}))
		})

		It("recognizes text", func() {
			runner.result = stdout(`{"Text":"Invoice 42","Language":"eng"}`)
			text, err := c.OCR().Recognize(ctx, "/tmp/s/1.png", "eng")
			Expect(err).NotTo(HaveOccurred())
			Expect(runner.args[0]).To(Equal([]string{"ocr", "recognize", "/tmp/s/1.png", "eng"}))
			Expect(text).To(Equal("Invoice 42"))
		})

		It("maps an Unsupported payload", func() {
			runner.result = stdout(`{"Error":"no OCR engine configured","Kind":"Unsupported","StackTrace":""}`)
			_, err := c.OCR().Languages(ctx)
			Expect(errors.Is(err, client.ErrUnsupported)).To(BeTrue())
		})
	})
})
