package federation

import (
	"testing"

	"github.com/deemkeen/copse/domain"
	"github.com/deemkeen/copse/util"
	"github.com/google/uuid"
)

func TestNewRegistryNormalizesAndRejectsDuplicates(t *testing.T) {
	r, err := NewRegistry([]domain.Peer{{Id: uuid.New(), BaseURL: "https://a.example/api"}})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if _, ok := r.ByBaseURL("https://a.example/api/"); !ok {
		t.Error("Expected lookup by normalized base url")
	}

	_, err = NewRegistry([]domain.Peer{
		{Id: uuid.New(), BaseURL: "https://a.example/api"},
		{Id: uuid.New(), BaseURL: "https://a.example/api/"},
	})
	if err == nil {
		t.Error("Expected duplicate base url to be rejected")
	}

	if _, err := NewRegistry([]domain.Peer{{Id: uuid.New()}}); err == nil {
		t.Error("Expected missing base url to be rejected")
	}
}

func TestRegistryFromConfig(t *testing.T) {
	off := false
	r, err := RegistryFromConfig([]util.PeerConf{
		{BaseUrl: "https://a.example/api"},
		{Name: "b", BaseUrl: "https://b.example/", Enabled: &off},
	})
	if err != nil {
		t.Fatalf("RegistryFromConfig failed: %v", err)
	}

	a, ok := r.ByBaseURL("https://a.example/api/")
	if !ok {
		t.Fatal("Expected peer a")
	}
	if !a.Enabled || a.Name != "https://a.example/api/" {
		t.Errorf("Expected enabled peer named after its url, got %+v", a)
	}
	if a.Id != uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://a.example/api/")) {
		t.Error("Expected id derived from base url")
	}
	if byId, ok := r.ByID(a.Id); !ok || byId.BaseURL != a.BaseURL {
		t.Error("Expected lookup by id")
	}

	b, _ := r.ByBaseURL("https://b.example/")
	if b.Enabled {
		t.Error("Expected peer b to be disabled")
	}

	if _, err := RegistryFromConfig([]util.PeerConf{{BaseUrl: "https://c.example/", Id: "nope"}}); err == nil {
		t.Error("Expected invalid id to be rejected")
	}
}

func TestRegistryWithStoredIds(t *testing.T) {
	r, err := RegistryFromConfig([]util.PeerConf{
		{BaseUrl: "https://a.example/api/"},
		{BaseUrl: "https://b.example/"},
	})
	if err != nil {
		t.Fatalf("RegistryFromConfig failed: %v", err)
	}
	a, _ := r.ByBaseURL("https://a.example/api/")
	b, _ := r.ByBaseURL("https://b.example/")
	storedId := uuid.New()

	adopted, err := r.WithStoredIds([]domain.Peer{{Id: storedId, BaseURL: "https://a.example/api"}})
	if err != nil {
		t.Fatalf("WithStoredIds failed: %v", err)
	}
	if got, _ := adopted.ByBaseURL("https://a.example/api/"); got.Id != storedId {
		t.Errorf("Expected stored id %s, got %s", storedId, got.Id)
	}
	if _, ok := adopted.ByID(storedId); !ok {
		t.Error("Expected lookup by the stored id")
	}
	if _, ok := adopted.ByID(a.Id); ok {
		t.Error("Expected the configured id to be gone")
	}
	if got, _ := adopted.ByBaseURL("https://b.example/"); got.Id != b.Id {
		t.Error("Expected a peer missing from the table to keep its id")
	}
	if got, _ := r.ByBaseURL("https://a.example/api/"); got.Id != a.Id {
		t.Error("Expected the original registry to be left alone")
	}
}

func TestAuthenticateInbound(t *testing.T) {
	hash, err := util.HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	r, _ := NewRegistry([]domain.Peer{
		{Id: uuid.New(), BaseURL: "https://a.example/", Enabled: true, InboundUsername: "a", InboundPasswordHash: hash},
		{Id: uuid.New(), BaseURL: "https://b.example/", Enabled: false, InboundUsername: "b", InboundPasswordHash: hash},
	})

	tests := []struct {
		name     string
		user     string
		password string
		ok       bool
	}{
		{name: "valid", user: "a", password: "s3cret", ok: true},
		{name: "wrong password", user: "a", password: "nope", ok: false},
		{name: "disabled peer", user: "b", password: "s3cret", ok: false},
		{name: "unknown user", user: "c", password: "s3cret", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := r.AuthenticateInbound(tt.user, tt.password)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && p.BaseURL != "https://a.example/" {
				t.Errorf("Expected peer a, got %s", p.BaseURL)
			}
		})
	}
}
