package proc

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// DefaultAppImagePath is returned by ValidateAppImagePath whenever the
// supplied path is unusable.
const DefaultAppImagePath = "images/default-app-image.png"

// assetsDir mirrors SUNSHINE_ASSETS_DIR; overridable for tests.
var assetsDir = "assets"

// ValidateAppImagePath picks the cover art actually served: anything that
// isn't a ".png" (case-insensitive), that's empty, or that doesn't exist on
// disk (checked under assetsDir first, then as given) falls back to the
// default box art, with a legacy substitution for the old Steam default.
func ValidateAppImagePath(path string) string {
	if path == "" {
		return DefaultAppImagePath
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".png" {
		return DefaultAppImagePath
	}

	full := filepath.Join(assetsDir, path)
	if _, err := os.Stat(full); err == nil {
		return full
	}
	if path == "./assets/steam.png" {
		return filepath.Join(assetsDir, "steam.png")
	}
	if _, err := os.Stat(path); err != nil {
		return DefaultAppImagePath
	}
	return path
}

func sha256Hex(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", false
	}
	return hex.EncodeToString(h.Sum(nil)), true
}

// CalculateAppID derives the short app id: CRC32 of name (+ sha256 of the
// validated image file, or the raw validated path if hashing fails/is
// skipped), truncated to the absolute value of a signed 32-bit integer. The
// "withIndex" variant salts the hash input with index, for collision
// resolution.
func CalculateAppID(name, imagePath string, index int) (withoutIndex, withIndex string) {
	var sb strings.Builder
	sb.WriteString(name)

	validated := ValidateAppImagePath(imagePath)
	if validated != DefaultAppImagePath {
		if hash, ok := sha256Hex(validated); ok {
			sb.WriteString(hash)
		} else {
			sb.WriteString(validated)
		}
	}

	base := sb.String()
	withIndexed := base + strconv.Itoa(index)

	return crc32Abs(base), crc32Abs(withIndexed)
}

func crc32Abs(s string) string {
	sum := crc32.ChecksumIEEE([]byte(s))
	v := int32(sum)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(int64(v), 10)
}
