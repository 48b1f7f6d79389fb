package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery/access"
	"gallery/cache"
	"gallery/db"
	"gallery/errs"
	"gallery/models"
	"gallery/remote"
	"gallery/store"
	"gallery/utils"
)

var initOnce sync.Once

// fakeMediaStore scripts the remote side of the sagas: uploads hand out
// ids, deletes can be told to fail for specific ids.
type fakeMediaStore struct {
	mu         sync.Mutex
	nextID     uint64
	uploads    int
	deleted    []uint64
	failDelete map[uint64]bool
	fixedID    uint64
}

func (f *fakeMediaStore) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.Method {
		case http.MethodPost:
			f.uploads++
			id := f.fixedID
			if id == 0 {
				f.nextID++
				id = f.nextID
			}
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id": %d, "title": {"raw": "remote title"},
				"source_url": "https://media.example.com/%d.jpg",
				"media_details": {"sizes": {
					"thumbnail": {"source_url": "https://media.example.com/%d-thumb.jpg"},
					"medium": {"source_url": "https://media.example.com/%d-med.jpg"}
				}}}`, id, id, id, id)
		case http.MethodDelete:
			id, _ := strconv.ParseUint(strings.Trim(r.URL.Path, "/"), 10, 64)
			if f.failDelete[id] {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			f.deleted = append(f.deleted, id)
			fmt.Fprint(w, `{"deleted": true}`)
		case http.MethodGet:
			id, _ := strconv.ParseUint(strings.Trim(r.URL.Path, "/"), 10, 64)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"id": %d, "source_url": "https://media.example.com/%d-repaired.jpg"}`, id, id)
		}
	}
}

func (f *fakeMediaStore) deletedIDs() []uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint64(nil), f.deleted...)
}

func testEngine(t *testing.T, fake *fakeMediaStore) (*Engine, *store.Store) {
	t.Helper()
	initOnce.Do(func() {
		db.InitTest()
		models.Init()
	})
	st := store.New(db.Instance, true)

	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	rc, err := remote.New(srv.URL, "svc", "secret")
	require.NoError(t, err)
	rc.Attempts = 2
	rc.BackoffMin = time.Millisecond
	rc.BackoffMax = 2 * time.Millisecond
	t.Cleanup(rc.Close)

	return New(st, rc, cache.New("")), st
}

func newScope(t *testing.T, st *store.Store, role models.Role) access.Scope {
	t.Helper()
	suffix := utils.Rand8BytesToBase62()
	tenant, err := st.CreateTenant("Tenant "+suffix, "tenant-"+suffix)
	require.NoError(t, err)
	user, err := st.CreateUser("user-"+suffix, "user-"+suffix+"@example.com", "secret", role, tenant.ID)
	require.NoError(t, err)
	return access.ForUser(user)
}

// memberOf adds another member to an existing tenant.
func memberOf(t *testing.T, st *store.Store, tenantID uint64) access.Scope {
	t.Helper()
	suffix := utils.Rand8BytesToBase62()
	user, err := st.CreateUser("peer-"+suffix, "peer-"+suffix+"@example.com", "secret", models.RoleMember, tenantID)
	require.NoError(t, err)
	return access.ForUser(user)
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 20, 20)), nil))
	return buf.Bytes()
}

var remoteSeedMu sync.Mutex
var remoteSeed uint64 = 5_000_000

func seedAsset(t *testing.T, st *store.Store, scope access.Scope) *models.Asset {
	t.Helper()
	remoteSeedMu.Lock()
	remoteSeed++
	id := remoteSeed
	remoteSeedMu.Unlock()
	a := &models.Asset{
		RemoteID: id,
		Title:    "seeded " + utils.Rand8BytesToBase62(),
		FileName: utils.Rand8BytesToBase62() + ".jpg",
		MimeType: "image/jpeg",
		URLFull:  "https://media.example.com/seed.jpg",
		UserID:   scope.UserID,
		TenantID: scope.TenantID,
	}
	require.NoError(t, st.CreateAsset(a))
	return a
}

func TestUploadSagaCreatesAsset(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	album, err := st.CreateAlbum(scope, "Inbox", "", nil, false)
	require.NoError(t, err)

	asset, err := e.Upload(context.Background(), UploadRequest{
		Data:         jpegBytes(t),
		FileName:     "birthday.jpg",
		DeclaredMime: "image/jpeg",
		AlbumID:      &album.ID,
		Scope:        scope,
	})
	require.NoError(t, err)
	assert.Equal(t, "remote title", asset.Title)
	assert.True(t, asset.Public)
	require.NotNil(t, asset.AlbumID)
	assert.Equal(t, album.ID, *asset.AlbumID)
	assert.Contains(t, asset.URLThumbnail, "-thumb.jpg")

	stored, err := st.GetAsset(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, asset.RemoteID, stored.RemoteID)
}

func TestUploadRejectsWithoutSideEffects(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	_, err := e.Upload(context.Background(), UploadRequest{Scope: access.AnonymousScope(), Data: []byte("x"), FileName: "a.jpg"})
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))

	_, err = e.Upload(context.Background(), UploadRequest{Scope: scope, FileName: "a.jpg"})
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = e.Upload(context.Background(), UploadRequest{Scope: scope, Data: []byte("not an image"), FileName: "a.exe"})
	assert.Equal(t, errs.KindUnsupportedMedia, errs.KindOf(err))

	// A bad album reference must fail before the remote commit.
	missing := uint64(999_999_999)
	_, err = e.Upload(context.Background(), UploadRequest{
		Data: jpegBytes(t), FileName: "a.jpg", AlbumID: &missing, Scope: scope,
	})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	assert.Zero(t, fake.uploads)
}

func TestUploadCompensatesOnLocalConflict(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	existing := seedAsset(t, st, scope)
	fake.fixedID = existing.RemoteID

	_, err := e.Upload(context.Background(), UploadRequest{
		Data:     jpegBytes(t),
		FileName: "dupe.jpg",
		Scope:    scope,
	})
	require.Error(t, err)
	assert.Equal(t, errs.KindConflict, errs.KindOf(err))
	// The remote object was cleaned up after the local commit failed.
	assert.Contains(t, fake.deletedIDs(), existing.RemoteID)
}

func TestUploadHonorsCancelBeforeRemoteCommit(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Upload(ctx, UploadRequest{Data: jpegBytes(t), FileName: "late.jpg", Scope: scope})
	require.Error(t, err)
	assert.Zero(t, fake.uploads)
}

func TestDeleteBatchTallies(t *testing.T) {
	fake := &fakeMediaStore{failDelete: map[uint64]bool{}}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	var ids []uint64
	var assets []*models.Asset
	for i := 0; i < 5; i++ {
		a := seedAsset(t, st, scope)
		assets = append(assets, a)
		ids = append(ids, a.ID)
	}
	// Two remote deletes fail; local removal proceeds regardless.
	fake.failDelete[assets[1].RemoteID] = true
	fake.failDelete[assets[3].RemoteID] = true

	result, err := e.DeleteAssets(context.Background(), scope, ids)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Requested)
	assert.Equal(t, 5, result.LocalDeleted)
	assert.Equal(t, 3, result.RemoteDeleted)
	assert.Empty(t, result.Failed)
	assert.Equal(t, "Deleted 5 local rows. Remote cleanup: 3/5 successful.", result.Message)

	for _, id := range ids {
		_, err := st.GetAsset(id)
		assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
	}
}

func TestDeleteSkipsForeignAndMissingAssets(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	owner := newScope(t, st, models.RoleMember)
	other := newScope(t, st, models.RoleMember)

	mine := seedAsset(t, st, owner)
	theirs := seedAsset(t, st, other)
	peers := seedAsset(t, st, memberOf(t, st, owner.TenantID))

	result, err := e.DeleteAssets(context.Background(), owner, []uint64{mine.ID, theirs.ID, peers.ID, 999_999_999})
	require.NoError(t, err)
	assert.Equal(t, 1, result.LocalDeleted)
	assert.ElementsMatch(t, []uint64{theirs.ID, peers.ID, 999_999_999}, result.Failed)

	// Assets owned by others survive, same tenant or not.
	_, err = st.GetAsset(theirs.ID)
	assert.NoError(t, err)
	_, err = st.GetAsset(peers.ID)
	assert.NoError(t, err)
}

func TestBatchValidation(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	_, err := e.DeleteAssets(context.Background(), scope, nil)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	tooMany := make([]uint64, MaxBatchSize+1)
	for i := range tooMany {
		tooMany[i] = uint64(i + 1)
	}
	_, err = e.DeleteAssets(context.Background(), scope, tooMany)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, err = e.MoveAssets(context.Background(), scope, []uint64{0}, nil)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestMoveBatchPartialSuccess(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	album, err := st.CreateAlbum(scope, "Target", "", nil, false)
	require.NoError(t, err)

	a := seedAsset(t, st, scope)
	b := seedAsset(t, st, scope)

	result, err := e.MoveAssets(context.Background(), scope, []uint64{a.ID, b.ID, 999_999_999}, &album.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Moved)
	assert.Equal(t, []uint64{999_999_999}, result.Failed)
	assert.Equal(t, "Moved 2 of 3 assets.", result.Message)

	moved, err := st.GetAsset(a.ID)
	require.NoError(t, err)
	require.NotNil(t, moved.AlbumID)
	assert.Equal(t, album.ID, *moved.AlbumID)
}

func TestSetVisibility(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	asset := seedAsset(t, st, scope)
	updated, err := e.SetVisibility(context.Background(), scope, asset.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.Public)

	_, err = e.SetVisibility(context.Background(), newScope(t, st, models.RoleMember), asset.ID, false)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))

	// A member of the same tenant who does not own the asset cannot flip
	// it either; the flag is owner-or-admin.
	_, err = e.SetVisibility(context.Background(), memberOf(t, st, scope.TenantID), asset.ID, false)
	assert.Equal(t, errs.KindForbidden, errs.KindOf(err))
	reloaded, err := st.GetAsset(asset.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.Public)
}

func TestRepairAssetURLs(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	asset := seedAsset(t, st, scope)
	repaired, err := e.RepairAssetURLs(context.Background(), scope, asset.ID)
	require.NoError(t, err)
	assert.Contains(t, repaired.URLFull, "-repaired.jpg")

	stored, err := st.GetAsset(asset.ID)
	require.NoError(t, err)
	assert.Equal(t, repaired.URLFull, stored.URLFull)
}

func TestConcurrentSagasOnSameAsset(t *testing.T) {
	fake := &fakeMediaStore{}
	e, st := testEngine(t, fake)
	scope := newScope(t, st, models.RoleMember)

	albumA, err := st.CreateAlbum(scope, "A", "", nil, false)
	require.NoError(t, err)
	albumB, err := st.CreateAlbum(scope, "B", "", nil, false)
	require.NoError(t, err)
	asset := seedAsset(t, st, scope)

	var wg sync.WaitGroup
	for _, target := range []*uint64{&albumA.ID, &albumB.ID} {
		wg.Add(1)
		go func(albumID *uint64) {
			defer wg.Done()
			_, err := e.MoveAssets(context.Background(), scope, []uint64{asset.ID}, albumID)
			assert.NoError(t, err)
		}(target)
	}
	wg.Wait()

	// Both moves succeed in some order; the row lands in exactly one album.
	final, err := st.GetAsset(asset.ID)
	require.NoError(t, err)
	require.NotNil(t, final.AlbumID)
	assert.Contains(t, []uint64{albumA.ID, albumB.ID}, *final.AlbumID)
}

func TestBatchResultSerializesFailedList(t *testing.T) {
	result := &BatchResult{Requested: 2, LocalDeleted: 1, Failed: []uint64{7}, Message: "x"}
	payload, err := json.Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(payload), `"failed":[7]`)
}
