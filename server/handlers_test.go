package server

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nuvyx/config"
	"nuvyx/core/auth"
	"nuvyx/model"
	"nuvyx/repository"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/sha3"
)

const (
	adminWallet = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	otherWallet = "0x0000000000000000000000000000000000000001"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	handler      *APIHandler
	router       http.Handler
	tokens       *auth.TokenIssuer
	songs        *memSongs
	users        *memUsers
	library      *memLibrary
	likes        *memLikes
	interactions *memInteractions
	objects      *fakeObjects
}

func newTestEnv() *testEnv {
	env := &testEnv{
		tokens:       auth.NewTokenIssuer("test-secret", time.Hour),
		songs:        &memSongs{songs: map[string]*model.Song{}},
		users:        &memUsers{users: map[string]*model.User{}},
		library:      &memLibrary{entries: map[pair]bool{}},
		likes:        &memLikes{likes: map[pair]bool{}},
		interactions: &memInteractions{downloads: map[pair]bool{}},
		objects:      &fakeObjects{},
	}
	cfg := &config.Config{AdminWallets: []string{strings.ToLower(adminWallet)}}
	env.handler = NewAPIHandler(Repositories{
		Songs:        env.songs,
		Users:        env.users,
		Library:      env.library,
		Likes:        env.likes,
		Interactions: env.interactions,
	}, fakeSigner{}, env.objects, env.tokens, cfg)
	env.handler.now = func() time.Time { return testNow }
	env.router = env.handler.Router()

	env.songs.songs["s1"] = &model.Song{ID: "s1", Title: "Night Drive", Artist: "Kavinsky", MoodType: "chill"}
	env.songs.songs["s2"] = &model.Song{ID: "s2", Title: "Daylight", Artist: "nuvyx", MoodType: "happy"}
	return env
}

func (e *testEnv) token(userID, wallet string) string {
	tok, err := e.tokens.GenerateToken(userID, wallet)
	So(err, ShouldBeNil)
	return tok
}

func (e *testEnv) do(method, target, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	if body != nil {
		So(json.NewEncoder(&buf).Encode(body), ShouldBeNil)
	}
	req := httptest.NewRequest(method, target, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestStreamURLHandler(t *testing.T) {
	Convey("GET /api/stream", t, func() {
		env := newTestEnv()

		Convey("requires a key", func() {
			rec, _ := env.do(http.MethodGet, "/api/stream", "", nil)
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("serves stream URLs anonymously", func() {
			rec, body := env.do(http.MethodGet, "/api/stream?key=songs/a.mp3", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["url"], ShouldEqual, "https://s3.test/songs/a.mp3")
		})

		Convey("rejects anonymous downloads", func() {
			rec, _ := env.do(http.MethodGet, "/api/stream?key=songs/a.mp3&download=true", "", nil)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("signs downloads with the requested filename", func() {
			rec, body := env.do(http.MethodGet, "/api/stream?key=songs/a.mp3&download=true&filename=A.mp3", env.token("u1", adminWallet), nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["url"], ShouldEqual, "https://s3.test/songs/a.mp3?filename=A.mp3")
		})

		Convey("falls back to the key's base name", func() {
			_, body := env.do(http.MethodGet, "/api/stream?key=songs/a.mp3&download=true", env.token("u1", adminWallet), nil)
			So(body["url"], ShouldEqual, "https://s3.test/songs/a.mp3?filename=a.mp3")
		})

		Convey("reports presign failures as 500", func() {
			env.handler.urls = fakeSigner{err: errDB}
			rec, _ := env.do(http.MethodGet, "/api/stream?key=k", "", nil)
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestInteractionHandlers(t *testing.T) {
	Convey("POST /api/interactions", t, func() {
		env := newTestEnv()

		Convey("records anonymous streams", func() {
			rec, _ := env.do(http.MethodPost, "/api/interactions", "", map[string]string{"type": "stream", "songId": "s1"})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.interactions.streams, ShouldResemble, []pair{{"", "s1"}})
		})

		Convey("attributes streams to the caller when authenticated", func() {
			env.do(http.MethodPost, "/api/interactions", env.token("u1", adminWallet), map[string]string{"type": "stream", "songId": "s1"})
			So(env.interactions.streams, ShouldResemble, []pair{{"u1", "s1"}})
		})

		Convey("ignores an invalid token for streams", func() {
			rec, _ := env.do(http.MethodPost, "/api/interactions", "garbage", map[string]string{"type": "stream", "songId": "s1"})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.interactions.streams, ShouldResemble, []pair{{"", "s1"}})
		})

		Convey("requires a user for downloads", func() {
			rec, _ := env.do(http.MethodPost, "/api/interactions", "", map[string]string{"type": "download", "songId": "s1"})
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)

			rec, _ = env.do(http.MethodPost, "/api/interactions", env.token("u1", adminWallet), map[string]string{"type": "download", "songId": "s1"})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(env.interactions.downloads[pair{"u1", "s1"}], ShouldBeTrue)
		})

		Convey("rejects unknown types and songs", func() {
			rec, _ := env.do(http.MethodPost, "/api/interactions", "", map[string]string{"type": "skip", "songId": "s1"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)

			rec, _ = env.do(http.MethodPost, "/api/interactions", "", map[string]string{"type": "stream", "songId": "nope"})
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("GET /api/interactions returns distinct recent songs", t, func() {
		env := newTestEnv()
		tok := env.token("u1", adminWallet)
		for _, id := range []string{"s1", "s2", "s1"} {
			env.do(http.MethodPost, "/api/interactions", tok, map[string]string{"type": "stream", "songId": id})
		}

		rec, body := env.do(http.MethodGet, "/api/interactions", tok, nil)
		So(rec.Code, ShouldEqual, http.StatusOK)
		history := body["history"].([]interface{})
		So(len(history), ShouldEqual, 2)
		So(history[0].(map[string]interface{})["songId"], ShouldEqual, "s1")

		rec, _ = env.do(http.MethodGet, "/api/interactions", "", nil)
		So(rec.Code, ShouldEqual, http.StatusUnauthorized)
	})
}

func TestLibraryHandlers(t *testing.T) {
	Convey("Library endpoints", t, func() {
		env := newTestEnv()
		tok := env.token("u1", adminWallet)

		Convey("require authentication", func() {
			rec, _ := env.do(http.MethodGet, "/api/library", "", nil)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("add is idempotent and list reflects it", func() {
			for i := 0; i < 2; i++ {
				rec, _ := env.do(http.MethodPost, "/api/library", tok, map[string]string{"songId": "s1"})
				So(rec.Code, ShouldEqual, http.StatusOK)
			}
			_, body := env.do(http.MethodGet, "/api/library", tok, nil)
			lib := body["library"].([]interface{})
			So(len(lib), ShouldEqual, 1)
			So(lib[0].(map[string]interface{})["songId"], ShouldEqual, "s1")
		})

		Convey("remove takes the song id from the body", func() {
			env.do(http.MethodPost, "/api/library", tok, map[string]string{"songId": "s1"})
			rec, _ := env.do(http.MethodDelete, "/api/library", tok, map[string]string{"songId": "s1"})
			So(rec.Code, ShouldEqual, http.StatusOK)
			_, body := env.do(http.MethodGet, "/api/library", tok, nil)
			So(body["library"], ShouldBeEmpty)
		})

		Convey("storage failures are 500", func() {
			env.library.err = errDB
			rec, _ := env.do(http.MethodPost, "/api/library", tok, map[string]string{"songId": "s1"})
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("missing song id is 400", func() {
			rec, _ := env.do(http.MethodPost, "/api/library", tok, map[string]string{})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestLikeHandlers(t *testing.T) {
	Convey("Like endpoints", t, func() {
		env := newTestEnv()
		tok := env.token("u1", adminWallet)

		rec, _ := env.do(http.MethodPost, "/api/likes", tok, map[string]string{"songId": "s1", "action": "like"})
		So(rec.Code, ShouldEqual, http.StatusOK)

		_, body := env.do(http.MethodGet, "/api/likes?songId=s1", tok, nil)
		So(body["liked"], ShouldEqual, true)

		_, body = env.do(http.MethodGet, "/api/likes", tok, nil)
		So(len(body["likes"].([]interface{})), ShouldEqual, 1)

		env.do(http.MethodPost, "/api/likes", tok, map[string]string{"songId": "s1", "action": "unlike"})
		_, body = env.do(http.MethodGet, "/api/likes?songId=s1", tok, nil)
		So(body["liked"], ShouldEqual, false)

		rec, _ = env.do(http.MethodPost, "/api/likes", tok, map[string]string{"songId": "s1", "action": "love"})
		So(rec.Code, ShouldEqual, http.StatusBadRequest)
	})
}

func TestSongHandlers(t *testing.T) {
	Convey("GET /api/songs", t, func() {
		env := newTestEnv()

		Convey("looks up by id", func() {
			rec, body := env.do(http.MethodGet, "/api/songs?id=s1", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["song"].(map[string]interface{})["title"], ShouldEqual, "Night Drive")

			rec, _ = env.do(http.MethodGet, "/api/songs?id=missing", "", nil)
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("searches title and artist case-insensitively", func() {
			_, body := env.do(http.MethodGet, "/api/songs?query=KAVIN", "", nil)
			So(len(body["songs"].([]interface{})), ShouldEqual, 1)

			_, body = env.do(http.MethodGet, "/api/songs?query=&mood=happy", "", nil)
			So(len(body["songs"].([]interface{})), ShouldEqual, 1)
		})
	})

	Convey("POST /api/songs", t, func() {
		env := newTestEnv()
		song := map[string]string{"title": "New", "moodType": "chill", "r2ObjectKey": "songs/new.mp3"}

		Convey("is forbidden to non-admins", func() {
			rec, _ := env.do(http.MethodPost, "/api/songs", env.token("u2", otherWallet), song)
			So(rec.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("validates required fields", func() {
			rec, _ := env.do(http.MethodPost, "/api/songs", env.token("u1", adminWallet), map[string]string{"title": "x"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("creates with defaults for admins", func() {
			rec, body := env.do(http.MethodPost, "/api/songs", env.token("u1", adminWallet), song)
			So(rec.Code, ShouldEqual, http.StatusCreated)
			created := body["song"].(map[string]interface{})
			So(created["artist"], ShouldEqual, "nuvyx")
			So(created["duration"], ShouldEqual, "0:00")
			So(created["id"], ShouldNotBeEmpty)
		})
	})
}

func TestSongAdminHandlers(t *testing.T) {
	Convey("PATCH /api/songs", t, func() {
		env := newTestEnv()
		admin := env.token("u1", adminWallet)

		Convey("is forbidden to non-admins", func() {
			rec, _ := env.do(http.MethodPatch, "/api/songs", env.token("u2", otherWallet), map[string]string{"id": "s1", "title": "X"})
			So(rec.Code, ShouldEqual, http.StatusForbidden)
			So(env.songs.songs["s1"].Title, ShouldEqual, "Night Drive")
		})

		Convey("requires an id", func() {
			rec, _ := env.do(http.MethodPatch, "/api/songs", admin, map[string]string{"title": "X"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("changes only the fields sent", func() {
			rec, body := env.do(http.MethodPatch, "/api/songs", admin, map[string]interface{}{
				"id": "s1", "title": "Night Drive (Remix)", "tags": []string{"synth"},
			})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, true)
			song := body["song"].(map[string]interface{})
			So(song["title"], ShouldEqual, "Night Drive (Remix)")
			So(song["artist"], ShouldEqual, "Kavinsky")
			So(song["moodType"], ShouldEqual, "chill")
			So(env.songs.songs["s1"].Tags, ShouldResemble, model.StringList{"synth"})
		})

		Convey("reports an unknown song as 404", func() {
			rec, _ := env.do(http.MethodPatch, "/api/songs", admin, map[string]string{"id": "missing", "title": "X"})
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})

	Convey("DELETE /api/songs", t, func() {
		env := newTestEnv()
		admin := env.token("u1", adminWallet)

		Convey("is forbidden to non-admins", func() {
			rec, _ := env.do(http.MethodDelete, "/api/songs", env.token("u2", otherWallet), map[string]string{"id": "s1"})
			So(rec.Code, ShouldEqual, http.StatusForbidden)
			So(env.songs.songs, ShouldContainKey, "s1")
		})

		Convey("removes the song for admins", func() {
			rec, body := env.do(http.MethodDelete, "/api/songs", admin, map[string]string{"id": "s1"})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, true)
			So(env.songs.songs, ShouldNotContainKey, "s1")

			rec, _ = env.do(http.MethodDelete, "/api/songs", admin, map[string]string{"id": "s1"})
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("requires an id", func() {
			rec, _ := env.do(http.MethodDelete, "/api/songs", admin, map[string]string{})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestRankingHandlers(t *testing.T) {
	Convey("Given ranked songs", t, func() {
		env := newTestEnv()
		env.interactions.ranked = []repository.RankedSong{
			{ID: "s1", Title: "Night Drive", Artist: "Kavinsky", Total: 12},
			{ID: "s2", Title: "Daylight", Artist: "nuvyx", Total: 3},
		}

		Convey("trending is public and covers the last seven days", func() {
			rec, body := env.do(http.MethodGet, "/api/ranking/trending", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			list := body["trending"].([]interface{})
			So(list, ShouldHaveLength, 2)
			So(list[0].(map[string]interface{})["count"], ShouldEqual, 12.0)
			So(env.interactions.since, ShouldResemble, []time.Time{testNow.Add(-7 * 24 * time.Hour)})
			So(env.interactions.limit, ShouldResemble, []int{20})
		})

		Convey("top mints covers the last day, seven songs at most", func() {
			rec, body := env.do(http.MethodGet, "/api/ranking/top-mints", "", nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["topMints"], ShouldHaveLength, 2)
			So(env.interactions.since, ShouldResemble, []time.Time{testNow.Add(-24 * time.Hour)})
			So(env.interactions.limit, ShouldResemble, []int{7})
		})

		Convey("an empty ranking is an empty list", func() {
			env.interactions.ranked = nil
			_, body := env.do(http.MethodGet, "/api/ranking/trending", "", nil)
			So(body["trending"], ShouldResemble, []interface{}{})
		})

		Convey("query failures are 500", func() {
			env.interactions.rankErr = errDB
			rec, _ := env.do(http.MethodGet, "/api/ranking/top-mints", "", nil)
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestUploadHandlers(t *testing.T) {
	Convey("POST /api/upload/presign", t, func() {
		env := newTestEnv()
		req := map[string]string{"filename": "My Song.mp3", "contentType": "audio/mpeg"}

		Convey("requires a token", func() {
			rec, _ := env.do(http.MethodPost, "/api/upload/presign", "", req)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("is forbidden to non-admins", func() {
			rec, _ := env.do(http.MethodPost, "/api/upload/presign", env.token("u2", otherWallet), req)
			So(rec.Code, ShouldEqual, http.StatusForbidden)
		})

		Convey("requires filename and content type", func() {
			rec, _ := env.do(http.MethodPost, "/api/upload/presign", env.token("u1", adminWallet), map[string]string{"filename": "a.mp3"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("returns a fresh key and its upload URL", func() {
			rec, body := env.do(http.MethodPost, "/api/upload/presign", env.token("u1", adminWallet), req)
			So(rec.Code, ShouldEqual, http.StatusOK)
			key := body["key"].(string)
			So(key, ShouldEndWith, "-My_Song.mp3")
			So(body["url"], ShouldEqual, "https://s3.test/"+key+"?X-Amz-Signature=put")
		})

		Convey("reports presign failures as 500", func() {
			env.objects.err = errDB
			rec, _ := env.do(http.MethodPost, "/api/upload/presign", env.token("u1", adminWallet), req)
			So(rec.Code, ShouldEqual, http.StatusInternalServerError)
		})
	})

	Convey("DELETE /api/upload/cleanup", t, func() {
		env := newTestEnv()
		env.songs.songs["s1"].R2ObjectKey = "songs/s1.mp3"
		admin := env.token("u1", adminWallet)

		Convey("is forbidden to non-admins", func() {
			rec, _ := env.do(http.MethodDelete, "/api/upload/cleanup", env.token("u2", otherWallet), map[string]string{"key": "orphan.mp3"})
			So(rec.Code, ShouldEqual, http.StatusForbidden)
			So(env.objects.removed, ShouldBeEmpty)
		})

		Convey("refuses keys a song still uses", func() {
			rec, _ := env.do(http.MethodDelete, "/api/upload/cleanup", admin, map[string]string{"key": "songs/s1.mp3"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
			So(env.objects.removed, ShouldBeEmpty)
		})

		Convey("removes orphaned objects", func() {
			rec, body := env.do(http.MethodDelete, "/api/upload/cleanup", admin, map[string]string{"key": "orphan.mp3"})
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["success"], ShouldEqual, true)
			So(env.objects.removed, ShouldResemble, []string{"orphan.mp3"})
		})

		Convey("requires a key", func() {
			rec, _ := env.do(http.MethodDelete, "/api/upload/cleanup", admin, map[string]string{})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

// signLogin signs the login message the way a browser wallet does.
func signLogin(key *secp256k1.PrivateKey, address string) string {
	msg := auth.LoginMessage(address)
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "\x19Ethereum Signed Message:\n%d%s", len(msg), msg)
	compact := ecdsa.SignCompact(key, h.Sum(nil), false)
	sig := append(append([]byte{}, compact[1:]...), compact[0])
	return "0x" + hex.EncodeToString(sig)
}

func walletOf(key *secp256k1.PrivateKey) string {
	raw := key.PubKey().SerializeUncompressed()
	h := sha3.NewLegacyKeccak256()
	h.Write(raw[1:])
	addr, _ := auth.ChecksumAddress("0x" + hex.EncodeToString(h.Sum(nil)[12:]))
	return addr
}

func TestAuthHandlers(t *testing.T) {
	Convey("Wallet login", t, func() {
		env := newTestEnv()
		key, err := secp256k1.GeneratePrivateKey()
		So(err, ShouldBeNil)
		wallet := walletOf(key)

		Convey("issues a token for a valid signature and upserts once", func() {
			req := map[string]string{"walletAddress": strings.ToLower(wallet), "signature": signLogin(key, strings.ToLower(wallet))}
			rec, body := env.do(http.MethodPost, "/api/auth/verify", "", req)
			So(rec.Code, ShouldEqual, http.StatusOK)

			claims, err := env.tokens.ParseToken(body["token"].(string))
			So(err, ShouldBeNil)
			So(claims.WalletAddress, ShouldEqual, wallet)

			env.do(http.MethodPost, "/api/auth/verify", "", req)
			So(len(env.users.users), ShouldEqual, 1)

			rec, body = env.do(http.MethodGet, "/api/auth/check?address="+strings.ToLower(wallet), body["token"].(string), nil)
			So(rec.Code, ShouldEqual, http.StatusOK)
			So(body["exists"], ShouldEqual, true)
		})

		Convey("rejects a signature from another key", func() {
			other, _ := secp256k1.GeneratePrivateKey()
			req := map[string]string{"walletAddress": wallet, "signature": signLogin(other, wallet)}
			rec, _ := env.do(http.MethodPost, "/api/auth/verify", "", req)
			So(rec.Code, ShouldEqual, http.StatusUnauthorized)
		})

		Convey("rejects malformed addresses", func() {
			rec, _ := env.do(http.MethodPost, "/api/auth/verify", "", map[string]string{"walletAddress": "0x12", "signature": "0x00"})
			So(rec.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("check reports unknown wallets", func() {
			_, body := env.do(http.MethodGet, "/api/auth/check?address="+wallet, env.token("u1", adminWallet), nil)
			So(body["exists"], ShouldEqual, false)
		})
	})
}

func TestMiddleware(t *testing.T) {
	Convey("CORS preflight is answered for API routes", t, func() {
		env := newTestEnv()
		rec, _ := env.do(http.MethodOptions, "/api/library", "", nil)
		So(rec.Code, ShouldEqual, http.StatusOK)
		So(rec.Header().Get("Access-Control-Allow-Origin"), ShouldEqual, "*")
	})

	Convey("RequireAuth rejects malformed headers", t, func() {
		env := newTestEnv()
		req := httptest.NewRequest(http.MethodGet, "/api/library", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		So(rec.Code, ShouldEqual, http.StatusUnauthorized)
	})
}
