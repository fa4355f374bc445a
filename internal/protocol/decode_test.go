package protocol

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("DecodeDevices", func() {
	DescribeTable("an empty array is an empty list for every driver",
		func(d Driver) {
			_, err := Encode(ListDevices{Driver: d})
			Expect(err).NotTo(HaveOccurred())

			devices, err := DecodeDevices([]byte("[]\n"))
			Expect(err).NotTo(HaveOccurred())
			Expect(devices).NotTo(BeNil())
			Expect(devices).To(BeEmpty())
		},
		Entry("default", DriverDefault),
		Entry("apple", DriverApple),
		Entry("sane", DriverSane),
		Entry("escl", DriverEscl),
		Entry("wia", DriverWia),
		Entry("twain", DriverTwain),
	)

	It("decodes devices in order", func() {
		devices, err := DecodeDevices([]byte(`[{"Id":"a","Name":"First","Driver":"Sane"},{"Id":"a","Name":"Second","Driver":"Sane"}]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(devices).To(Equal([]ScannerDevice{
			{ID: "a", Name: "First", Driver: "Sane"},
			{ID: "a", Name: "Second", Driver: "Sane"},
		}))
	})

	It("treats null as an empty list", func() {
		devices, err := DecodeDevices([]byte("null"))
		Expect(err).NotTo(HaveOccurred())
		Expect(devices).To(BeEmpty())
	})

	It("rejects a device without an Id", func() {
		_, err := DecodeDevices([]byte(`[{"Name":"x"}]`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("rejects an empty payload", func() {
		_, err := DecodeDevices([]byte("  \n"))
		Expect(IsDecodeError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("empty payload"))
	})

	It("rejects text that is not JSON", func() {
		_, err := DecodeDevices([]byte("Scanning for devices..."))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("returns an error payload as a RemoteError", func() {
		_, err := DecodeDevices([]byte(`{"Error":"driver crashed","StackTrace":"at x"}`))
		var re *RemoteError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Message).To(Equal("driver crashed"))
		Expect(re.Kind).To(BeEmpty())
		Expect(re.StackTrace).To(Equal("at x"))
	})
})

var _ = Describe("DecodeScanResult", func() {
	It("reproduces paths verbatim", func() {
		args, err := Encode(ScanToImages{DeviceID: "abc", DPI: 300, PaperSource: PaperSourceFeeder})
		Expect(err).NotTo(HaveOccurred())
		Expect(args).To(Equal([]string{"scan", "to-images", "abc", "", "300", "Feeder"}))

		payload := `{"ImagePaths":["/tmp/scan x/1.png","/tmp/scan x/2.png"],"TempDirectory":"/tmp/scan x"}`
		res, err := DecodeScanResult([]byte(payload))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.ImagePaths).To(Equal([]string{"/tmp/scan x/1.png", "/tmp/scan x/2.png"}))
		Expect(res.TempDirectory).To(Equal("/tmp/scan x"))
	})

	It("rejects a payload without TempDirectory", func() {
		_, err := DecodeScanResult([]byte(`{"ImagePaths":["/tmp/1.png"]}`))
		Expect(IsDecodeError(err)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("missing TempDirectory"))
	})

	It("rejects a payload without ImagePaths", func() {
		_, err := DecodeScanResult([]byte(`{"TempDirectory":"/tmp"}`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("rejects an array", func() {
		_, err := DecodeScanResult([]byte(`[]`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("returns a device-not-found payload as a RemoteError", func() {
		_, err := DecodeScanResult([]byte(`{"Error":"device zzz not found","Kind":"DeviceNotFound","StackTrace":""}`))
		var re *RemoteError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Kind).To(Equal(KindDeviceNotFound))
	})
})

var _ = Describe("DecodeJpegSaveResult", func() {
	It("decodes a successful result", func() {
		res, err := DecodeJpegSaveResult([]byte(`{"Success":true,"Directory":"/out","Files":["/out/1.jpg","/out/2.jpg"],"Count":2}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Success).To(BeTrue())
		Expect(res.Count).To(Equal(len(res.Files)))
		Expect(res.Error).To(BeNil())
	})

	It("decodes a failed result", func() {
		res, err := DecodeJpegSaveResult([]byte(`{"Success":false,"Directory":"/out","Files":[],"Count":0,"Error":"permission denied"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Success).To(BeFalse())
		Expect(res.Error).To(HaveValue(Equal("permission denied")))
	})

	It("fills Count when it is absent", func() {
		res, err := DecodeJpegSaveResult([]byte(`{"Success":true,"Directory":"/out","Files":["/out/1.jpg"]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Count).To(Equal(1))
	})

	It("rejects a Count that does not match Files", func() {
		_, err := DecodeJpegSaveResult([]byte(`{"Success":true,"Directory":"/out","Files":["/out/1.jpg"],"Count":3}`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("rejects a failure without Error", func() {
		_, err := DecodeJpegSaveResult([]byte(`{"Success":false,"Directory":"/out","Files":[],"Count":0}`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("rejects a success carrying Error", func() {
		_, err := DecodeJpegSaveResult([]byte(`{"Success":true,"Directory":"/out","Files":[],"Count":0,"Error":"odd"}`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("returns a bare error payload as a RemoteError", func() {
		_, err := DecodeJpegSaveResult([]byte(`{"Error":"boom","StackTrace":"trace"}`))
		var re *RemoteError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Message).To(Equal("boom"))
	})
})

var _ = Describe("DecodePdfSaveResult", func() {
	It("decodes the result", func() {
		res, err := DecodePdfSaveResult([]byte(`{"Path":"/out/scan.pdf","PageCount":3}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal(&PdfSaveResult{Path: "/out/scan.pdf", PageCount: 3}))
	})

	It("rejects a result without Path", func() {
		_, err := DecodePdfSaveResult([]byte(`{"PageCount":3}`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("rejects a result without pages", func() {
		_, err := DecodePdfSaveResult([]byte(`{"Path":"/out/scan.pdf","PageCount":0}`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("returns an export failure as a RemoteError", func() {
		_, err := DecodePdfSaveResult([]byte(`{"Error":"decoding image: bad data","Kind":"ExportFailed","StackTrace":""}`))
		var re *RemoteError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Kind).To(Equal(KindExportFailed))
	})
})

var _ = Describe("DecodeImagePaths", func() {
	It("reproduces paths verbatim", func() {
		paths, err := DecodeImagePaths([]byte(`["/tmp/scanbridge-x/1.png","/tmp/scanbridge-x/2 b.png"]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(paths).To(Equal([]string{"/tmp/scanbridge-x/1.png", "/tmp/scanbridge-x/2 b.png"}))
	})

	It("rejects null", func() {
		_, err := DecodeImagePaths([]byte(`null`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("rejects an empty path", func() {
		_, err := DecodeImagePaths([]byte(`["/a.png",""]`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})

	It("returns an import failure as a RemoteError", func() {
		_, err := DecodeImagePaths([]byte(`{"Error":"opening PDF: not a pdf","Kind":"ImportFailed","StackTrace":""}`))
		var re *RemoteError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Kind).To(Equal(KindImportFailed))
	})
})

var _ = Describe("DecodeOcrLanguages", func() {
	It("decodes languages", func() {
		langs, err := DecodeOcrLanguages([]byte(`[{"code":"eng","name":"English"}]`))
		Expect(err).NotTo(HaveOccurred())
		Expect(langs).To(Equal([]OcrLanguage{{Code: "eng", Name: "English"}}))
	})

	It("rejects a language without a code", func() {
		_, err := DecodeOcrLanguages([]byte(`[{"name":"English"}]`))
		Expect(IsDecodeError(err)).To(BeTrue())
	})
})

var _ = Describe("DecodeOcrText", func() {
	It("decodes text", func() {
		res, err := DecodeOcrText([]byte(`{"Text":"hello\nworld","Language":"eng"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Text).To(Equal("hello\nworld"))
	})

	It("returns an unsupported payload as a RemoteError", func() {
		_, err := DecodeOcrText([]byte(`{"Error":"no ocr engine configured","Kind":"Unsupported","StackTrace":""}`))
		var re *RemoteError
		Expect(errors.As(err, &re)).To(BeTrue())
		Expect(re.Kind).To(Equal(KindUnsupported))
	})
})
