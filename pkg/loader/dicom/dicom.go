// Package dicom reads the header elements of DICOM files. Pixel data is
// never decoded.
package dicom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

var ErrNoSeries = errors.New("header has no SeriesInstanceUID")

// SeriesField identifies the series a file belongs to.
const SeriesField = "SeriesInstanceUID"

// Fields are the structured header elements copied onto series nodes.
var Fields = []string{
	"PatientID",
	"AccessionNumber",
	"Modality",
	"PatientSex",
	"PatientAge",
	"SOPClassUID",
	"Manufacturer",
	SeriesField,
}

// FreeTextFields are header elements holding free text worth grounding.
var FreeTextFields = []string{
	"StudyDescription",
	"SeriesDescription",
	"BodyPartExamined",
	"ProtocolName",
	"ImageComments",
}

// Tags maps the keywords in Fields and FreeTextFields to their tags.
var Tags = map[string]tag.Tag{
	"PatientID":         tag.PatientID,
	"AccessionNumber":   tag.AccessionNumber,
	"Modality":          tag.Modality,
	"PatientSex":        tag.PatientSex,
	"PatientAge":        tag.PatientAge,
	"SOPClassUID":       tag.SOPClassUID,
	"Manufacturer":      tag.Manufacturer,
	"SeriesInstanceUID": tag.SeriesInstanceUID,
	"StudyDescription":  tag.StudyDescription,
	"SeriesDescription": tag.SeriesDescription,
	"BodyPartExamined":  tag.BodyPartExamined,
	"ProtocolName":      tag.ProtocolName,
	"ImageComments":     tag.ImageComments,
}

// Header holds string elements by keyword. Multi-valued elements are
// joined with a backslash, as they are stored on disk.
type Header map[string]string

// Get returns the value of keyword, or "".
func (h Header) Get(keyword string) string { return h[keyword] }

// Series returns the series instance UID.
func (h Header) Series() string { return h[SeriesField] }

// ReadHeader parses content and collects the elements listed in Tags.
// ErrNoSeries is returned together with the header when the series UID
// is missing.
func ReadHeader(content []byte) (Header, error) {
	ds, err := dicom.Parse(bytes.NewReader(content), int64(len(content)), nil, dicom.SkipPixelData())
	if err != nil {
		return nil, fmt.Errorf("failed to parse dicom: %w", err)
	}

	h := make(Header, len(Tags))
	for keyword, t := range Tags {
		el, err := ds.FindElementByTag(t)
		if err != nil {
			continue
		}
		values, ok := el.Value.GetValue().([]string)
		if !ok {
			continue
		}
		if v := trim(strings.Join(values, `\`)); v != "" {
			h[keyword] = v
		}
	}
	if h.Series() == "" {
		return h, ErrNoSeries
	}
	return h, nil
}

// trim drops the space and NUL padding of even-length element values.
func trim(v string) string {
	return strings.Trim(v, " \x00")
}
