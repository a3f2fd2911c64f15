package api

import (
	"encoding/json"

	"github.com/CrispStrobe/filen-go/internal/models"
)

// apiResponse is the uniform gateway response envelope. Data is left raw
// until the caller-provided type decodes it.
type apiResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// AuthInfoResponse describes how to derive keys for an account before login.
type AuthInfoResponse struct {
	AuthVersion int    `json:"authVersion"`
	Salt        string `json:"salt"`
}

// LoginResponse is the successful login payload. MasterKeys is either a
// plain "k1|k2|..." string or a list of envelopes encrypted under the
// password-derived master key; interpretation happens in the login flow.
type LoginResponse struct {
	APIKey         string          `json:"apiKey"`
	MasterKeys     json.RawMessage `json:"masterKeys"`
	BaseFolderUUID string          `json:"baseFolderUUID"`
	ID             int64           `json:"id"`
}

// DirContentResponse lists one folder level: encrypted subfolder records and
// encrypted file ("upload") records.
type DirContentResponse struct {
	Folders []models.FolderRecord `json:"folders"`
	Uploads []models.FileRecord   `json:"uploads"`
}

// FileInfoResponse is the encrypted record of a single file.
type FileInfoResponse struct {
	Metadata string `json:"metadata"`
	Chunks   int    `json:"chunks"`
	Region   string `json:"region"`
	Bucket   string `json:"bucket"`
	Parent   string `json:"parent"`
}

// DirInfoResponse is the encrypted record of a single folder.
type DirInfoResponse struct {
	Metadata string `json:"metadata"`
	Parent   string `json:"parent"`
}

// FileExistsResponse answers a parent + hashed-name existence probe. UUID is
// set only when Exists is true.
type FileExistsResponse struct {
	Exists bool   `json:"exists"`
	UUID   string `json:"uuid"`
}

// uuidData is the payload of responses that carry nothing but a uuid.
type uuidData struct {
	UUID string `json:"uuid"`
}

// DirCreateRequest creates one folder. The uuid is chosen client-side;
// CreationTime and ModificationTime are optional millisecond timestamps
// forwarded only for the final component of a mkdir walk.
type DirCreateRequest struct {
	UUID             string `json:"uuid"`
	Name             string `json:"name"`
	NameHashed       string `json:"nameHashed"`
	Parent           string `json:"parent"`
	CreationTime     int64  `json:"creationTime,omitempty"`
	ModificationTime int64  `json:"modificationTime,omitempty"`
}

// UploadEmptyRequest finalizes a zero-byte upload; no chunk traffic happens.
// Name, Size, and Mime are per-field envelopes under the file key; Metadata
// is the whole-record envelope under the master key.
type UploadEmptyRequest struct {
	UUID       string `json:"uuid"`
	Name       string `json:"name"`
	NameHashed string `json:"nameHashed"`
	Size       string `json:"size"`
	Parent     string `json:"parent"`
	Mime       string `json:"mime"`
	Metadata   string `json:"metadata"`
	Version    int    `json:"version"`
}

// UploadDoneRequest finalizes a chunked upload. Encrypted fields follow the
// same convention as UploadEmptyRequest.
type UploadDoneRequest struct {
	UUID       string `json:"uuid"`
	Name       string `json:"name"`
	NameHashed string `json:"nameHashed"`
	Size       string `json:"size"`
	Chunks     int    `json:"chunks"`
	Mime       string `json:"mime"`
	RM         string `json:"rm"`
	Metadata   string `json:"metadata"`
	Version    int    `json:"version"`
	UploadKey  string `json:"uploadKey"`
}

// ChunkUploadRequest addresses one encrypted chunk on the ingest host. Hash
// is the lowercase SHA-512 hex of the ciphertext body.
type ChunkUploadRequest struct {
	UUID      string
	Index     int
	Parent    string
	UploadKey string
	Hash      string
}
