package models

import (
	"encoding/json"
	"strings"

	"github.com/CrispStrobe/filen-go/internal/cryptox"
)

// DecodeFolderName opens an encrypted folder name record against the master
// key ring. Folder names are stored either as an envelope over the raw name
// or over a JSON object {"name": ...}; both forms are accepted, with a
// leading brace as the discriminator.
func DecodeFolderName(envelope string, keys []string) (string, error) {
	plaintext, err := cryptox.DecryptMetadataAny(envelope, keys)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(plaintext, "{") {
		var obj struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal([]byte(plaintext), &obj); err == nil && obj.Name != "" {
			return obj.Name, nil
		}
	}
	return plaintext, nil
}

// DecodeFolder turns a wire folder record into a handle. A record whose name
// cannot be decrypted still yields a handle, flagged Encrypted and named
// EncryptedName, so listings stay complete.
func DecodeFolder(rec FolderRecord, keys []string) Folder {
	f := Folder{
		UUID:         rec.UUID,
		ParentUUID:   rec.Parent,
		Timestamp:    rec.Timestamp,
		LastModified: rec.LastModified,
	}
	name, err := DecodeFolderName(rec.Name, keys)
	if err != nil {
		f.Name = EncryptedName
		f.Encrypted = true
		return f
	}
	f.Name = name
	return f
}

// DecodeFile turns a wire file record into a handle by opening its metadata
// envelope. Like DecodeFolder it never fails: undecryptable records are
// flagged Encrypted.
func DecodeFile(rec FileRecord, keys []string) File {
	f := File{
		UUID:       rec.UUID,
		ParentUUID: rec.Parent,
		Timestamp:  rec.Timestamp,
		Region:     rec.Region,
		Bucket:     rec.Bucket,
		Chunks:     rec.Chunks,
	}
	meta, err := DecodeFileMetadata(rec.Metadata, keys)
	if err != nil {
		f.Name = EncryptedName
		f.Encrypted = true
		return f
	}
	f.Name = meta.Name
	f.Size = meta.Size
	f.MimeType = meta.Mime
	f.FileKey = meta.Key
	f.Hash = meta.Hash
	f.LastModified = meta.LastModified
	return f
}

// DecodeFileMetadata opens a file metadata envelope against the key ring and
// parses the contained JSON. The metadata envelope is authoritative; the
// redundant per-field envelopes the server also stores are write-only.
func DecodeFileMetadata(envelope string, keys []string) (*FileMetadata, error) {
	plaintext, err := cryptox.DecryptMetadataAny(envelope, keys)
	if err != nil {
		return nil, err
	}
	var meta FileMetadata
	if err := json.Unmarshal([]byte(plaintext), &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// EncodeFileMetadata seals file metadata into an envelope under the given
// key (normally the identity's most recent master key).
func EncodeFileMetadata(meta *FileMetadata, key string) (string, error) {
	raw, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return cryptox.EncryptMetadata(string(raw), key)
}

// EncodeFolderName seals a folder name as the JSON object form the current
// protocol writes.
func EncodeFolderName(name, key string) (string, error) {
	raw, err := json.Marshal(struct {
		Name string `json:"name"`
	}{Name: name})
	if err != nil {
		return "", err
	}
	return cryptox.EncryptMetadata(string(raw), key)
}
