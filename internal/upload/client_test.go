package upload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestUploadFormFields(t *testing.T) {
	var gotFile []byte
	var gotFilename string
	form := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
			return
		}
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
		gotFilename = hdr.Filename
		for k := range r.MultipartForm.Value {
			form[k] = r.FormValue(k)
		}
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	ack, err := c.Upload(context.Background(), Request{
		Kind:          KindCorrectSample,
		Filename:      "sample.wav",
		MediaType:     "audio/wav",
		Data:          []byte{1, 2, 3, 4},
		ReferenceText: "بسم الله",
		MistakeID:     "m-1",
	})
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}

	if string(ack) != `{"ok":true}` {
		t.Errorf("ack = %q", ack)
	}
	if gotFilename != "sample.wav" || string(gotFile) != "\x01\x02\x03\x04" {
		t.Errorf("file part = %q (%d bytes)", gotFilename, len(gotFile))
	}
	if form["sample_type"] != "correct_recitation_sample" {
		t.Errorf("sample_type = %q", form["sample_type"])
	}
	if form["reference_text"] != "بسم الله" {
		t.Errorf("reference_text = %q", form["reference_text"])
	}
	if form["original_mistake_id"] != "m-1" {
		t.Errorf("original_mistake_id = %q", form["original_mistake_id"])
	}
}

func TestUploadOmitsEmptyOptionalFields(t *testing.T) {
	var hasRef, hasMistake bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20) //nolint:errcheck
		_, hasRef = r.MultipartForm.Value["reference_text"]
		_, hasMistake = r.MultipartForm.Value["original_mistake_id"]
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	_, err := c.Upload(context.Background(), Request{
		Kind:     KindInitialRecitation,
		Filename: "session.wav",
		Data:     []byte{0},
	})
	if err != nil {
		t.Fatal(err)
	}
	if hasRef || hasMistake {
		t.Error("optional fields sent for an initial recitation upload")
	}
}

func TestUploadNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	if _, err := c.Upload(context.Background(), Request{Filename: "x.wav", Data: []byte{0}}); err == nil {
		t.Error("Upload succeeded against HTTP 500")
	}
}
