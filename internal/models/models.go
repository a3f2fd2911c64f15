// Package models defines the Filen drive data model: encrypted wire records
// as the API returns them, their decrypted counterparts, and the identity
// that owns them. Handles reference their parent by uuid only; ownership of
// handle slices stays with the listing cache.
package models

// Identity is the authenticated session: who we are and which keys unlock
// the drive. It is created at login and treated as immutable afterwards.
//
// MasterKeys is ordered oldest to newest; the most recent key encrypts all
// new envelopes while every key remains a decryption candidate.
type Identity struct {
	Email          string
	APIKey         string
	MasterKeys     []string
	BaseFolderUUID string
	UserID         int64
}

// MasterKey returns the most recent master key, the one used for all new
// envelopes. Empty when the identity carries no keys.
func (id *Identity) MasterKey() string {
	if len(id.MasterKeys) == 0 {
		return ""
	}
	return id.MasterKeys[len(id.MasterKeys)-1]
}

// FolderRecord is the encrypted folder entry of a /v3/dir/content response.
type FolderRecord struct {
	UUID         string `json:"uuid"`
	Name         string `json:"name"`
	Parent       string `json:"parent"`
	Timestamp    int64  `json:"timestamp"`
	LastModified int64  `json:"lastModified"`
}

// FileRecord is the encrypted file entry ("upload") of a /v3/dir/content
// response. Everything interesting about the file lives inside the metadata
// envelope.
type FileRecord struct {
	UUID      string `json:"uuid"`
	Metadata  string `json:"metadata"`
	Parent    string `json:"parent"`
	Timestamp int64  `json:"timestamp"`
	Region    string `json:"region"`
	Bucket    string `json:"bucket"`
	Chunks    int    `json:"chunks"`
}

// FileMetadata is the plaintext JSON carried by a file's metadata envelope.
// LastModified is in milliseconds since the epoch. Hash is the lowercase
// SHA-512 hex of the full plaintext, empty for empty files.
type FileMetadata struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Mime         string `json:"mime"`
	Key          string `json:"key"`
	Hash         string `json:"hash"`
	LastModified int64  `json:"lastModified"`
}

// EncryptedName is shown in listings for items whose metadata no master key
// could decrypt. Operations on such items fail; listing them does not.
const EncryptedName = "[Encrypted]"

// ItemKind selects the folder or file variant of an API mutation.
type ItemKind string

const (
	KindFolder ItemKind = "dir"
	KindFile   ItemKind = "file"
)

// Folder is a decrypted folder handle.
type Folder struct {
	UUID         string
	ParentUUID   string
	Name         string
	Timestamp    int64
	LastModified int64
	Encrypted    bool
}

// File is a decrypted file handle. FileKey is the 32-character per-file key
// whose UTF-8 bytes encrypt the file's chunks.
type File struct {
	UUID         string
	ParentUUID   string
	Name         string
	Size         int64
	Chunks       int
	MimeType     string
	FileKey      string
	Hash         string
	LastModified int64
	Timestamp    int64
	Region       string
	Bucket       string
	Encrypted    bool
}
