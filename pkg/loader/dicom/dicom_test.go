package dicom

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

func element(t *testing.T, tg tag.Tag, data any) *dicom.Element {
	t.Helper()
	el, err := dicom.NewElement(tg, data)
	if err != nil {
		t.Fatalf("NewElement(%v): %v", tg, err)
	}
	return el
}

// encode writes a minimal explicit VR little endian file with the given
// header values.
func encode(t *testing.T, values map[string]string, order ...string) []byte {
	t.Helper()
	elems := []*dicom.Element{
		element(t, tag.FileMetaInformationVersion, []byte{0, 1}),
		element(t, tag.MediaStorageSOPClassUID, []string{"1.2.840.10008.5.1.4.1.1.2"}),
		element(t, tag.MediaStorageSOPInstanceUID, []string{"1.2.3.4.5"}),
		element(t, tag.TransferSyntaxUID, []string{"1.2.840.10008.1.2.1"}),
	}
	for _, kw := range order {
		elems = append(elems, element(t, Tags[kw], []string{values[kw]}))
	}
	var buf bytes.Buffer
	if err := dicom.Write(&buf, dicom.Dataset{Elements: elems}); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestReadHeader(t *testing.T) {
	values := map[string]string{
		"PatientID":         "NF-001",
		"Modality":          "MR",
		"PatientSex":        "F",
		"PatientAge":        "034Y",
		"SeriesInstanceUID": "1.2.840.113619.2.1",
		"SeriesDescription": "plexiform neurofibroma",
	}
	content := encode(t, values, "PatientID", "PatientSex", "PatientAge", "Modality", "SeriesInstanceUID", "SeriesDescription")

	h, err := ReadHeader(content)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(map[string]string(h), values) {
		t.Errorf("ReadHeader() = %v, want %v", h, values)
	}
	if h.Series() != "1.2.840.113619.2.1" {
		t.Errorf("Series() = %q", h.Series())
	}
}

func TestReadHeaderErrors(t *testing.T) {
	t.Run("NoSeries", func(t *testing.T) {
		content := encode(t, map[string]string{"Modality": "CT"}, "Modality")
		h, err := ReadHeader(content)
		if !errors.Is(err, ErrNoSeries) {
			t.Fatalf("err = %v, want ErrNoSeries", err)
		}
		if h.Get("Modality") != "CT" {
			t.Errorf("header = %v", h)
		}
	})
	t.Run("NotDicom", func(t *testing.T) {
		if _, err := ReadHeader([]byte("gene,tissue\nNF1,skin\n")); err == nil {
			t.Error("expected an error for non-DICOM content")
		}
	})
}

func TestTagsCoverFields(t *testing.T) {
	for _, kw := range append(append([]string{}, Fields...), FreeTextFields...) {
		if _, ok := Tags[kw]; !ok {
			t.Errorf("no tag for %s", kw)
		}
	}
}
