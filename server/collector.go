package server

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dialup-inc/photobooth/delivery"
	"github.com/dialup-inc/photobooth/store"
)

// maxUpload bounds the multipart body a booth may post.
const maxUpload = 32 << 20

// Collector receives pictures uploaded by delivery.HTTPUploader and stores
// them in Dir.
type Collector struct {
	Dir   string
	Token string
	Field string
	Log   zerolog.Logger
}

type collected struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func (c *Collector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		c.Log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("bad upload")
		http.Error(w, "bad upload", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	if c.Token != "" && r.FormValue(delivery.TokenField) != c.Token {
		c.Log.Warn().Str("remote", r.RemoteAddr).Msg("upload with bad token")
		http.Error(w, "bad token", http.StatusUnauthorized)
		return
	}

	field := c.Field
	if field == "" {
		field = delivery.DefaultField
	}
	file, hdr, err := r.FormFile(field)
	if err != nil {
		http.Error(w, "missing "+field, http.StatusBadRequest)
		return
	}
	defer file.Close()

	name := c.name(hdr.Filename)
	path := filepath.Join(c.Dir, name)

	var size int64
	err = store.WriteAtomic(path, func(w io.Writer) error {
		n, err := io.Copy(w, file)
		size = n
		return err
	})
	if err != nil {
		c.Log.Error().Err(err).Msg("store upload")
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}

	c.Log.Info().Str("name", name).Int64("size", size).Msg("collected")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(collected{Name: name, Size: size})
}

// name keeps the uploaded base name unless it is unusable or taken.
func (c *Collector) name(upload string) string {
	name := filepath.Base(filepath.Clean("/" + upload))
	if name == "/" || name == "." || strings.HasPrefix(name, ".") {
		return uuid.NewString() + ".jpg"
	}
	if _, err := os.Stat(filepath.Join(c.Dir, name)); err == nil {
		ext := filepath.Ext(name)
		return strings.TrimSuffix(name, ext) + "-" + uuid.NewString()[:8] + ext
	}
	return name
}
