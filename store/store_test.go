package store

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gallery/access"
	"gallery/db"
	"gallery/models"
	"gallery/utils"
)

var initOnce sync.Once

// testStore shares one in-memory database across the package's tests, so
// every test creates its own tenant and asserts within it.
func testStore(t *testing.T) *Store {
	t.Helper()
	initOnce.Do(func() {
		db.InitTest()
		models.Init()
	})
	return New(db.Instance, true)
}

func newTenant(t *testing.T, s *Store) *models.Tenant {
	t.Helper()
	suffix := utils.Rand8BytesToBase62()
	tenant, err := s.CreateTenant("Tenant "+suffix, "tenant-"+suffix)
	require.NoError(t, err)
	return tenant
}

func newUser(t *testing.T, s *Store, tenantID uint64, role models.Role) *models.User {
	t.Helper()
	suffix := utils.Rand8BytesToBase62()
	user, err := s.CreateUser("user-"+suffix, "user-"+suffix+"@example.com", "pass-"+suffix, role, tenantID)
	require.NoError(t, err)
	return user
}

func newScope(t *testing.T, s *Store, role models.Role) access.Scope {
	t.Helper()
	tenant := newTenant(t, s)
	return access.ForUser(newUser(t, s, tenant.ID, role))
}

var remoteIDSeq uint64 = 1_000_000
var remoteIDMu sync.Mutex

func nextRemoteID() uint64 {
	remoteIDMu.Lock()
	defer remoteIDMu.Unlock()
	remoteIDSeq++
	return remoteIDSeq
}

func newAsset(t *testing.T, s *Store, scope access.Scope, public bool) *models.Asset {
	t.Helper()
	a := &models.Asset{
		RemoteID:     nextRemoteID(),
		Title:        "asset " + utils.Rand8BytesToBase62(),
		FileName:     utils.Rand8BytesToBase62() + ".jpg",
		MimeType:     "image/jpeg",
		URLFull:      "https://media.example.com/full.jpg",
		URLThumbnail: "https://media.example.com/thumb.jpg",
		URLMedium:    "https://media.example.com/medium.jpg",
		UserID:       scope.UserID,
		TenantID:     scope.TenantID,
		Public:       public,
	}
	require.NoError(t, s.CreateAsset(a))
	return a
}
