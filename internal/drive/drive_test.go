package drive

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrispStrobe/filen-go/internal/api"
	"github.com/CrispStrobe/filen-go/internal/api/apitest"
	"github.com/CrispStrobe/filen-go/internal/common"
	"github.com/CrispStrobe/filen-go/internal/cryptox"
	"github.com/CrispStrobe/filen-go/internal/logging"
	"github.com/CrispStrobe/filen-go/internal/models"
)

const testMasterKey = "test-master-key-1"

func testIdentity() *models.Identity {
	return &models.Identity{
		Email:          "user@example.com",
		APIKey:         "api-key",
		MasterKeys:     []string{testMasterKey},
		BaseFolderUUID: "base",
		UserID:         1,
	}
}

// fakeTree serves encrypted listings from mutable in-memory state, so tests
// can observe cache behavior and simulate server-side changes.
type fakeTree struct {
	fake    *apitest.Fake
	folders map[string][]models.FolderRecord
	files   map[string][]models.FileRecord
}

func newFakeTree() *fakeTree {
	ft := &fakeTree{
		folders: map[string][]models.FolderRecord{},
		files:   map[string][]models.FileRecord{},
	}
	ft.fake = &apitest.Fake{
		DirContentFn: func(ctx context.Context, uuid string, foldersOnly bool) (*api.DirContentResponse, error) {
			resp := &api.DirContentResponse{Folders: ft.folders[uuid]}
			if !foldersOnly {
				resp.Uploads = ft.files[uuid]
			}
			return resp, nil
		},
		DirCreateFn: func(ctx context.Context, req *api.DirCreateRequest) (string, error) {
			ft.folders[req.Parent] = append(ft.folders[req.Parent], models.FolderRecord{
				UUID:   req.UUID,
				Name:   req.Name,
				Parent: req.Parent,
			})
			return req.UUID, nil
		},
	}
	return ft
}

func (ft *fakeTree) addFolder(t *testing.T, parent, uuid, name string) {
	t.Helper()
	enc, err := models.EncodeFolderName(name, testMasterKey)
	require.NoError(t, err)
	ft.folders[parent] = append(ft.folders[parent], models.FolderRecord{
		UUID:   uuid,
		Name:   enc,
		Parent: parent,
	})
}

func (ft *fakeTree) addFile(t *testing.T, parent, uuid string, meta models.FileMetadata) {
	t.Helper()
	if meta.Key == "" {
		meta.Key = "0123456789abcdefghijklmnopqrstuv"
	}
	enc, err := models.EncodeFileMetadata(&meta, testMasterKey)
	require.NoError(t, err)
	ft.files[parent] = append(ft.files[parent], models.FileRecord{
		UUID:     uuid,
		Metadata: enc,
		Parent:   parent,
		Region:   "de-1",
		Bucket:   "bucket",
		Chunks:   1,
	})
}

func newTestDrive(t *testing.T, ft *fakeTree) Drive {
	t.Helper()
	d, err := New(ft.fake, testIdentity(), NewListingCache(10*time.Minute), logging.NewDiscardLogger())
	require.NoError(t, err)
	return d
}

func TestNew_RequiresKeysAndRoot(t *testing.T) {
	cache := NewListingCache(time.Minute)

	_, err := New(&apitest.Fake{}, &models.Identity{BaseFolderUUID: "base"}, cache, nil)
	require.Error(t, err)

	_, err = New(&apitest.Fake{}, &models.Identity{MasterKeys: []string{"k"}}, cache, nil)
	require.Error(t, err)

	_, err = New(&apitest.Fake{}, testIdentity(), cache, nil)
	require.NoError(t, err)
}

func TestList_CachesUntilInvalidated(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f1", "docs")
	ft.addFile(t, "base", "a1", models.FileMetadata{Name: "a.txt", Size: 3})
	d := newTestDrive(t, ft)
	ctx := context.Background()

	folders, files, err := d.List(ctx, "base")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	require.Len(t, files, 1)
	assert.Equal(t, "docs", folders[0].Name)
	assert.Equal(t, "a.txt", files[0].Name)

	_, _, err = d.List(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, 1, ft.fake.CallCount("DirContent"), "second list must come from cache")

	d.Invalidate("base")
	_, _, err = d.List(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, 2, ft.fake.CallCount("DirContent"), "invalidated listing must refetch")
}

func TestList_ReturnedSlicesAreCopies(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f1", "docs")
	d := newTestDrive(t, ft)
	ctx := context.Background()

	folders, _, err := d.List(ctx, "base")
	require.NoError(t, err)
	folders[0].Name = "mutated"

	again, _, err := d.List(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, "docs", again[0].Name, "caller mutations must not leak into the cache")
}

func TestList_TTLExpiry(t *testing.T) {
	current := time.Now()
	origNow := timeNow
	timeNow = func() time.Time { return current }
	t.Cleanup(func() { timeNow = origNow })

	ft := newFakeTree()
	ft.addFolder(t, "base", "f1", "docs")
	d := newTestDrive(t, ft)
	ctx := context.Background()

	_, _, err := d.List(ctx, "base")
	require.NoError(t, err)

	current = current.Add(9 * time.Minute)
	_, _, err = d.List(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, 1, ft.fake.CallCount("DirContent"))

	current = current.Add(time.Minute + time.Second)
	_, _, err = d.List(ctx, "base")
	require.NoError(t, err)
	assert.Equal(t, 2, ft.fake.CallCount("DirContent"), "stale listing must refetch")
}

func TestListFolders_FetchesFoldersOnly(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f1", "docs")
	ft.addFile(t, "base", "a1", models.FileMetadata{Name: "a.txt"})

	var sawFoldersOnly bool
	inner := ft.fake.DirContentFn
	ft.fake.DirContentFn = func(ctx context.Context, uuid string, foldersOnly bool) (*api.DirContentResponse, error) {
		sawFoldersOnly = foldersOnly
		return inner(ctx, uuid, foldersOnly)
	}

	d := newTestDrive(t, ft)
	folders, err := d.ListFolders(context.Background(), "base")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.True(t, sawFoldersOnly, "resolver fetches must not pull file records")

	// The files half was not cached by the folders-only fetch.
	files, err := d.ListFiles(context.Background(), "base")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.False(t, sawFoldersOnly)
}

func TestResolve_Root(t *testing.T) {
	d := newTestDrive(t, newFakeTree())

	for _, p := range []string{"/", "", "//", "/./", "/.."} {
		item, err := d.Resolve(context.Background(), p)
		require.NoError(t, err, "path %q", p)
		assert.Equal(t, "base", item.UUID)
		assert.Equal(t, models.KindFolder, item.Kind)
		assert.True(t, item.IsRoot())
	}
}

func TestResolve_NestedFolderAndFile(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f-a", "a")
	ft.addFolder(t, "f-a", "f-b", "b")
	ft.addFile(t, "f-b", "file-x", models.FileMetadata{Name: "x.txt", Size: 7})
	d := newTestDrive(t, ft)
	ctx := context.Background()

	folder, err := d.Resolve(ctx, "/a/b")
	require.NoError(t, err)
	assert.Equal(t, models.KindFolder, folder.Kind)
	assert.Equal(t, "f-b", folder.UUID)
	assert.Equal(t, "/a/b", folder.Path)
	assert.Equal(t, "f-a", folder.ParentUUID)

	file, err := d.Resolve(ctx, "a/b/x.txt")
	require.NoError(t, err)
	assert.Equal(t, models.KindFile, file.Kind)
	assert.Equal(t, "file-x", file.UUID)
	assert.Equal(t, "/a/b/x.txt", file.Path)
	require.NotNil(t, file.File)
	assert.EqualValues(t, 7, file.File.Size)
}

func TestResolve_NormalizesDotSegments(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f-a", "a")
	ft.addFolder(t, "f-a", "f-b", "b")
	d := newTestDrive(t, ft)

	item, err := d.Resolve(context.Background(), "/a/./c/../b/")
	require.NoError(t, err)
	assert.Equal(t, "f-b", item.UUID)
}

func TestResolve_FolderBeatsFile(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f-same", "same")
	ft.addFile(t, "base", "file-same", models.FileMetadata{Name: "same"})
	d := newTestDrive(t, ft)

	item, err := d.Resolve(context.Background(), "/same")
	require.NoError(t, err)
	assert.Equal(t, models.KindFolder, item.Kind)
	assert.Equal(t, "f-same", item.UUID)
}

func TestResolve_CaseSensitive(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f-docs", "Docs")
	d := newTestDrive(t, ft)

	_, err := d.Resolve(context.Background(), "/docs")
	var pnf *PathNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "/docs", pnf.Path)
}

func TestResolve_PartialPathInError(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, "base", "f-a", "a")
	d := newTestDrive(t, ft)

	_, err := d.Resolve(context.Background(), "/a/missing/deeper")
	var pnf *PathNotFoundError
	require.ErrorAs(t, err, &pnf)
	assert.Equal(t, "/a/missing", pnf.Path)
}

func TestResolve_EncryptedItemsCannotBeAddressed(t *testing.T) {
	ft := newFakeTree()
	enc, err := models.EncodeFolderName("ghost", "some-other-master-key")
	require.NoError(t, err)
	ft.folders["base"] = append(ft.folders["base"], models.FolderRecord{UUID: "f-ghost", Name: enc, Parent: "base"})
	d := newTestDrive(t, ft)
	ctx := context.Background()

	folders, _, err := d.List(ctx, "base")
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, models.EncryptedName, folders[0].Name)
	assert.True(t, folders[0].Encrypted)

	_, err = d.Resolve(ctx, "/ghost")
	require.Error(t, err)
	_, err = d.Resolve(ctx, "/"+models.EncryptedName)
	require.Error(t, err, "the placeholder name is not addressable either")
}

func TestResolveFolder_RejectsFiles(t *testing.T) {
	ft := newFakeTree()
	ft.addFile(t, "base", "file-1", models.FileMetadata{Name: "a.txt"})
	d := newTestDrive(t, ft)

	_, err := d.ResolveFolder(context.Background(), "/a.txt")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not a folder")
}

func TestResolveTrash_FolderFirstByName(t *testing.T) {
	ft := newFakeTree()
	ft.addFolder(t, TrashParent, "f-t", "gone")
	ft.addFile(t, TrashParent, "file-t", models.FileMetadata{Name: "gone"})
	ft.addFile(t, TrashParent, "file-u", models.FileMetadata{Name: "other.txt"})
	d := newTestDrive(t, ft)
	ctx := context.Background()

	item, err := d.ResolveTrash(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, models.KindFolder, item.Kind)
	assert.Equal(t, "f-t", item.UUID)

	item, err = d.ResolveTrash(ctx, "other.txt")
	require.NoError(t, err)
	assert.Equal(t, models.KindFile, item.Kind)

	_, err = d.ResolveTrash(ctx, "never-was")
	var pnf *PathNotFoundError
	require.ErrorAs(t, err, &pnf)
}

func TestFileByUUID(t *testing.T) {
	ft := newFakeTree()
	metaEnc, err := models.EncodeFileMetadata(&models.FileMetadata{
		Name: "a.txt", Size: 9, Key: "abcdefghijklmnopqrstuvwxyz012345", Hash: "cafe", LastModified: 777,
	}, testMasterKey)
	require.NoError(t, err)
	ft.fake.FileInfoFn = func(ctx context.Context, uuid string) (*api.FileInfoResponse, error) {
		return &api.FileInfoResponse{
			Metadata: metaEnc, Chunks: 2, Region: "de-1", Bucket: "b", Parent: "f-p",
		}, nil
	}
	d := newTestDrive(t, ft)

	file, err := d.FileByUUID(context.Background(), "file-1")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", file.Name)
	assert.EqualValues(t, 9, file.Size)
	assert.Equal(t, 2, file.Chunks)
	assert.Equal(t, "de-1", file.Region)
	assert.Equal(t, "f-p", file.ParentUUID)
	assert.EqualValues(t, 777, file.LastModified)
}

func TestFileByUUID_UndecryptableMetadata(t *testing.T) {
	ft := newFakeTree()
	metaEnc, err := models.EncodeFileMetadata(&models.FileMetadata{Name: "x"}, "not-our-master-key")
	require.NoError(t, err)
	ft.fake.FileInfoFn = func(ctx context.Context, uuid string) (*api.FileInfoResponse, error) {
		return &api.FileInfoResponse{Metadata: metaEnc}, nil
	}
	d := newTestDrive(t, ft)

	_, err = d.FileByUUID(context.Background(), "file-1")
	require.ErrorIs(t, err, common.ErrDecryptFailed)
}

func TestNameHash_MatchesPrimitive(t *testing.T) {
	d := newTestDrive(t, newFakeTree())

	key := cryptox.DeriveNameHMACKey(testMasterKey, "user@example.com")
	assert.Equal(t, cryptox.HashName("Report.PDF", key), d.NameHash("Report.PDF"))
	assert.Equal(t, d.NameHash("report.pdf"), d.NameHash("REPORT.PDF"))
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"/", nil},
		{"", nil},
		{"/a/b", []string{"a", "b"}},
		{"a/b/", []string{"a", "b"}},
		{"//a///b//", []string{"a", "b"}},
		{"/a/./b", []string{"a", "b"}},
		{"/a/../b", []string{"b"}},
		{"/../..", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitPath(tt.in), "input %q", tt.in)
	}
}
