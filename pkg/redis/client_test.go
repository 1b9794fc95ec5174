package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/medcart-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 1, count)
	require.Len(t, mock.expireCalls, 1)
	require.Equal(t, "mc:rate_limit:login:ip:1.2.3.4", mock.expireCalls[0].key)
	require.Equal(t, time.Minute, mock.expireCalls[0].ttl)

	allowed, count, err = client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 2, count)
	require.Len(t, mock.expireCalls, 1, "expire is only set on the first hit")

	allowed, _, err = client.FixedWindowAllow(ctx, "login:ip:1.2.3.4", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestDelIfEquals(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.LockKey("cron")
	require.NoError(t, client.Set(ctx, key, "owner-b", time.Minute))

	deleted, err := client.DelIfEquals(ctx, key, "owner-a")
	require.NoError(t, err)
	require.False(t, deleted)
	_, err = client.Get(ctx, key)
	require.NoError(t, err)

	deleted, err = client.DelIfEquals(ctx, key, "owner-b")
	require.NoError(t, err)
	require.True(t, deleted)
	_, err = client.Get(ctx, key)
	require.ErrorIs(t, err, redis.Nil)
}

func TestTakeConsumesValue(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))

	v, err := client.Take(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", v)
	_, err = client.Take(ctx, "k")
	require.ErrorIs(t, err, redis.Nil)
}

func TestUserSessionIndex(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.UserSessionsKey("user-1")

	require.NoError(t, client.AddMember(ctx, key, time.Hour, "a", "b"))
	require.NoError(t, client.RemoveMember(ctx, key, "a"))
	members, err := client.Members(ctx, key)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, members)

	require.NoError(t, client.Del(ctx, key))
	members, err = client.Members(ctx, key)
	require.NoError(t, err)
	require.Empty(t, members)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "mc:idempotency:checkout:abc", client.IdempotencyKey("checkout", "abc"))
	require.Equal(t, "mc:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "mc:session:access:jti-1", client.AccessSessionKey("jti-1"))
	require.Equal(t, "mc:session:user:u1", client.UserSessionsKey("u1"))
	require.Equal(t, "mc:lock:cron", client.LockKey(" cron "))
	require.Equal(t, "mc:idempotency:checkout", client.IdempotencyKey("checkout", ""))
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	require.ErrorIs(t, err, errNotInitialized)
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	require.NoError(t, err)
	require.Equal(t, "localhost:6379", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 7, opts.PoolSize)
	require.Equal(t, time.Second, opts.DialTimeout)
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	sets        map[string]map[string]struct{}
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
		sets: make(map[string]map[string]struct{}),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) GetDel(ctx context.Context, key string) *redis.StringCmd {
	cmd := m.Get(ctx, key)
	delete(m.data, key)
	return cmd
}

// EvalSha runs the scripts this package registers; anything else is unknown.
func (m *mockCmdable) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	switch sha {
	case windowScript.Hash():
		return m.window(keys[0], args[0])
	case delIfEqualsScript.Hash():
		return m.delIfEquals(keys[0], args[0])
	}
	return redis.NewCmdResult(nil, fmt.Errorf("unknown script %s", sha))
}

func (m *mockCmdable) Eval(ctx context.Context, src string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, redis.NewScript(src).Hash(), keys, args...)
}

func (m *mockCmdable) EvalRO(ctx context.Context, src string, keys []string, args ...any) *redis.Cmd {
	return m.Eval(ctx, src, keys, args...)
}

func (m *mockCmdable) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return m.EvalSha(ctx, sha, keys, args...)
}

func (m *mockCmdable) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (m *mockCmdable) ScriptLoad(_ context.Context, src string) *redis.StringCmd {
	return redis.NewStringResult(redis.NewScript(src).Hash(), nil)
}

func (m *mockCmdable) window(key string, ttlMillis any) *redis.Cmd {
	m.incr[key]++
	if m.incr[key] == 1 {
		ms, _ := ttlMillis.(int64)
		m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: time.Duration(ms) * time.Millisecond})
	}
	return redis.NewCmdResult(m.incr[key], nil)
}

func (m *mockCmdable) delIfEquals(key string, value any) *redis.Cmd {
	if v, ok := m.data[key]; ok && v == fmt.Sprint(value) {
		delete(m.data, key)
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	if _, isSet := m.sets[key]; !isSet {
		m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	}
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.sets, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) SAdd(_ context.Context, key string, members ...any) *redis.IntCmd {
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	for _, member := range members {
		set[fmt.Sprint(member)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *mockCmdable) SRem(_ context.Context, key string, members ...any) *redis.IntCmd {
	for _, member := range members {
		delete(m.sets[key], fmt.Sprint(member))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (m *mockCmdable) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	out := []string{}
	for member := range m.sets[key] {
		out = append(out, member)
	}
	return redis.NewStringSliceResult(out, nil)
}
