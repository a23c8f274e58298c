package publish

import (
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUploadFile(t *testing.T) {
	var (
		gotPath   string
		gotFields = map[string]string{}
		gotFile   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		b, _ := io.ReadAll(f)
		gotFile = string(b)
		fmt.Fprint(w, `{"public_id":"reports/students.csv","secure_url":"https://cdn.example/students.csv","bytes":12}`)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "students.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,name\n1,A\n"), 0o644))

	c := New("demo", "key", "secret", "reports", srv.URL+"/")
	c.now = func() time.Time { return time.Unix(1700000000, 0) }

	res, err := c.UploadFile(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example/students.csv", res.SecureURL)
	require.Equal(t, "/v1_1/demo/raw/upload", gotPath)
	require.Equal(t, "id,name\n1,A\n", gotFile)
	require.Equal(t, "key", gotFields["api_key"])
	require.Equal(t, "students.csv", gotFields["public_id"])

	payload := "folder=reports&overwrite=true&public_id=students.csv&timestamp=1700000000secret"
	require.Equal(t, fmt.Sprintf("%x", sha1.Sum([]byte(payload))), gotFields["signature"])
}

func TestUploadBytes_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad signature"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New("demo", "key", "secret", "", srv.URL)
	_, err := c.UploadBytes(context.Background(), []byte("x"), "a.json")
	require.ErrorContains(t, err, "401")
}

func TestUploadFile_Missing(t *testing.T) {
	c := New("demo", "key", "secret", "", "")
	require.Equal(t, "https://api.cloudinary.com", c.BaseURL)
	_, err := c.UploadFile(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}
