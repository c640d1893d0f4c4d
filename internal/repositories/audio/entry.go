package audio

import (
	"encoding/hex"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// Entry is one stored clip.
type Entry struct {
	ID        string            `json:"id"`
	Data      Payload           `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Size      int64             `json:"size"`
	CreatedAt int64             `json:"createdAt"`
	Checksum  string            `json:"checksum"`
}

// ClipID is the default id of a clip cut from url between start and end seconds.
func ClipID(url string, start, end float64) string {
	return url + "_" + strconv.FormatFloat(start, 'f', -1, 64) + "_" + strconv.FormatFloat(end, 'f', -1, 64)
}

func checksum(p Payload) string {
	sum := blake2b.Sum256(p.raw())
	return hex.EncodeToString(sum[:])
}
