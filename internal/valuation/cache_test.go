package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"github.com/mkorzen/poly-pnl/internal/identity"
)

func TestMarkCacheHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := Key{MarketID: identity.CanonicalID(mktA), Outcome: 0}

	mock.ExpectGet("mark:" + mktA + ":0").SetVal("0.57")

	// Underlying source would answer differently; the hit must win.
	next := NewStaticMarks(map[Key]float64{key: 0.99}, false)
	cache := NewMarkCache(next, rdb, time.Minute, nil)

	p, err := cache.MarkPrice(context.Background(), key)
	if err != nil {
		t.Fatalf("MarkPrice error: %v", err)
	}
	if p != 0.57 {
		t.Errorf("price = %v, want cached 0.57", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}

func TestMarkCacheMissPopulates(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := Key{MarketID: identity.CanonicalID(mktA), Outcome: 0}
	rkey := "mark:" + mktA + ":0"

	mock.ExpectGet(rkey).RedisNil()
	mock.ExpectSet(rkey, "0.62", time.Minute).SetVal("OK")

	next := NewStaticMarks(map[Key]float64{key: 0.62}, false)
	cache := NewMarkCache(next, rdb, time.Minute, nil)

	p, err := cache.MarkPrice(context.Background(), key)
	if err != nil {
		t.Fatalf("MarkPrice error: %v", err)
	}
	if p != 0.62 {
		t.Errorf("price = %v, want 0.62", p)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}

func TestMarkCacheMissingStaysMissing(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	key := Key{MarketID: identity.CanonicalID(mktA), Outcome: 3}

	mock.ExpectGet("mark:" + mktA + ":3").RedisNil()

	cache := NewMarkCache(NewStaticMarks(nil, false), rdb, time.Minute, nil)
	if _, err := cache.MarkPrice(context.Background(), key); err == nil {
		t.Error("expected missing error to pass through the cache")
	}
}

func TestMarkCacheBatch(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	k0 := Key{MarketID: identity.CanonicalID(mktA), Outcome: 0}
	k1 := Key{MarketID: identity.CanonicalID(mktA), Outcome: 1}

	// k0 cached, k1 fetched from the source and written back.
	mock.ExpectMGet("mark:"+mktA+":0", "mark:"+mktA+":1").
		SetVal([]interface{}{"0.4", nil})
	mock.ExpectSet("mark:"+mktA+":1", "0.6", time.Minute).SetVal("OK")

	next := NewStaticMarks(map[Key]float64{k1: 0.6}, false)
	cache := NewMarkCache(next, rdb, time.Minute, nil)

	got, err := cache.MarkPrices(context.Background(), []Key{k0, k1})
	if err != nil {
		t.Fatalf("MarkPrices error: %v", err)
	}
	if got[k0] != 0.4 || got[k1] != 0.6 {
		t.Errorf("prices = %v, want k0=0.4 k1=0.6", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("redis expectations: %v", err)
	}
}
