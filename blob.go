package blobts

import "fmt"

// Blob is a stored blob and its key.
type Blob struct {
	Key  Key
	Data []byte
}

func (b Blob) String() string {
	return fmt.Sprintf("%s (%d bytes)", b.Key, len(b.Data))
}
