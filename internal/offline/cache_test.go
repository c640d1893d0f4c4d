package offline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	e, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, e)

	require.NoError(t, c.Set(ctx, "k", &Entry{Status: 200, Body: []byte("x")}))
	e, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), e.Body)
}

func TestRedisCache_Get(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client, time.Hour)
	ctx := context.Background()

	stored, err := json.Marshal(&Entry{Status: 200, Header: http.Header{"Content-Type": {"audio/mpeg"}}, Body: []byte("ID3")})
	require.NoError(t, err)

	testCases := []struct {
		name    string
		mocker  func()
		want    *Entry
		wantErr bool
	}{
		{
			name:   "hit",
			mocker: func() { mock.ExpectGet(redisKeyPrefix + "http://api/download/f1").SetVal(string(stored)) },
			want:   &Entry{Status: 200, Header: http.Header{"Content-Type": {"audio/mpeg"}}, Body: []byte("ID3")},
		},
		{
			name:   "miss",
			mocker: func() { mock.ExpectGet(redisKeyPrefix + "http://api/download/f1").RedisNil() },
		},
		{
			name:    "redis error",
			mocker:  func() { mock.ExpectGet(redisKeyPrefix + "http://api/download/f1").SetErr(errors.New("conn reset")) },
			wantErr: true,
		},
		{
			name:    "garbage",
			mocker:  func() { mock.ExpectGet(redisKeyPrefix + "http://api/download/f1").SetVal("{") },
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.mocker()
			got, err := c.Get(ctx, "http://api/download/f1")
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.want, got)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRedisCache_Set(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewRedisCacheFromClient(client, 10*time.Minute)

	e := &Entry{Status: 200, Body: []byte("png")}
	b, err := json.Marshal(e)
	require.NoError(t, err)

	mock.ExpectSet(redisKeyPrefix+"k", b, 10*time.Minute).SetVal("OK")
	require.NoError(t, c.Set(context.Background(), "k", e))

	mock.ExpectSet(redisKeyPrefix+"k", b, 10*time.Minute).SetErr(errors.New("OOM"))
	require.Error(t, c.Set(context.Background(), "k", e))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTransport_WithRedisCache(t *testing.T) {
	client, mock := redismock.NewClientMock()
	net := &fakeNet{}
	tr := NewTransport(NewRedisCacheFromClient(client, 0), WithBase(net))

	mock.ExpectGet(redisKeyPrefix + "http://api/screenshot/f1").RedisNil()
	want, err := json.Marshal(&Entry{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": {"text/plain"}},
		Body:   []byte("/screenshot/f1"),
	})
	require.NoError(t, err)
	mock.ExpectSet(redisKeyPrefix+"http://api/screenshot/f1", want, 0).SetVal("OK")

	resp, body := get(t, tr, "http://api/screenshot/f1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/screenshot/f1", body)
	require.NoError(t, mock.ExpectationsWereMet())
}
