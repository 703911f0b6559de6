package memkv

import (
    "sort"
    "strings"
    "sync"
    "sync/atomic"
    "time"
)

// ========================= Опции =========================

type Options struct {
    Shards   int              // количество шардов (стандарт: 16)
    MaxBytes uint64           // жёсткий лимит суммарного объёма значений (0 = без лимита)
    Now      func() time.Time // источник времени; nil = time.Now
}

func (o Options) withDefaults() Options {
    if o.Shards <= 0 {
        o.Shards = 16
    }
    if o.Now == nil {
        o.Now = time.Now
    }
    return o
}

// ========================= Store =========================

type Store struct {
    opts   Options
    shards []shard

    mKeys    atomic.Uint64
    mBytes   atomic.Uint64
    mSets    atomic.Uint64
    mHits    atomic.Uint64
    mMisses  atomic.Uint64
    mDels    atomic.Uint64
    mExpired atomic.Uint64
    mUpdates atomic.Uint64
}

type shard struct {
    mu sync.RWMutex
    m  map[string]*entry
}

type entry struct {
    val      []byte
    expireAt int64 // unix nano; 0 = без истечения
}

func (e *entry) expired(now int64) bool { return e.expireAt != 0 && e.expireAt <= now }

func New(opts Options) *Store {
    opts = opts.withDefaults()
    s := &Store{opts: opts, shards: make([]shard, opts.Shards)}
    for i := range s.shards {
        s.shards[i].m = make(map[string]*entry)
    }
    return s
}

func (s *Store) shardFor(key string) *shard {
    // FNV-1a 64
    var h uint64 = 1469598103934665603
    for i := 0; i < len(key); i++ {
        h ^= uint64(key[i])
        h *= 1099511628211
    }
    return &s.shards[int(h%uint64(len(s.shards)))]
}

func (s *Store) now() int64 { return s.opts.Now().UnixNano() }

func (s *Store) deadline(ttl time.Duration) int64 {
    if ttl <= 0 {
        return 0
    }
    return s.opts.Now().Add(ttl).UnixNano()
}

// reserve пытается учесть прирост объёма; false, если лимит превышен.
func (s *Store) reserve(delta int) bool {
    if delta == 0 {
        return true
    }
    if delta < 0 {
        s.mBytes.Add(^uint64(-delta - 1)) // вычитание
        return true
    }
    for {
        cur := s.mBytes.Load()
        next := cur + uint64(delta)
        if s.opts.MaxBytes != 0 && next > s.opts.MaxBytes {
            return false
        }
        if s.mBytes.CompareAndSwap(cur, next) {
            return true
        }
    }
}

// dropLocked удаляет запись под уже взятой блокировкой шарда.
func (s *Store) dropLocked(sh *shard, key string, e *entry, expired bool) {
    delete(sh.m, key)
    s.mKeys.Add(^uint64(0))
    if len(e.val) > 0 {
        s.reserve(-len(e.val))
    }
    if expired {
        s.mExpired.Add(1)
    } else {
        s.mDels.Add(1)
    }
}

// ========================= Публичный API =========================

// Set сохраняет копию val. Возвращает false, если запись превысила бы MaxBytes.
func (s *Store) Set(key string, val []byte, ttl time.Duration) bool {
    v := append([]byte(nil), val...)
    sh := s.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    prev, existed := sh.m[key]
    if existed && prev.expired(s.now()) {
        s.dropLocked(sh, key, prev, true)
        prev, existed = nil, false
    }
    oldLen := 0
    if existed {
        oldLen = len(prev.val)
    }
    if !s.reserve(len(v) - oldLen) {
        return false
    }
    sh.m[key] = &entry{val: v, expireAt: s.deadline(ttl)}
    if !existed {
        s.mKeys.Add(1)
    }
    s.mSets.Add(1)
    return true
}

// Get возвращает копию значения. Просроченные ключи удаляются лениво.
func (s *Store) Get(key string) ([]byte, bool) {
    sh := s.shardFor(key)
    sh.mu.RLock()
    e, ok := sh.m[key]
    if ok && !e.expired(s.now()) {
        out := append([]byte(nil), e.val...)
        sh.mu.RUnlock()
        s.mHits.Add(1)
        return out, true
    }
    sh.mu.RUnlock()
    s.mMisses.Add(1)
    if ok {
        sh.mu.Lock()
        if e2, ok2 := sh.m[key]; ok2 && e2.expired(s.now()) {
            s.dropLocked(sh, key, e2, true)
        }
        sh.mu.Unlock()
    }
    return nil, false
}

// Update применяет fn к текущему значению (nil, если ключа нет) и сохраняет
// результат с новым TTL. Возвращает false при превышении MaxBytes.
func (s *Store) Update(key string, ttl time.Duration, fn func(old []byte) []byte) bool {
    sh := s.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    e, ok := sh.m[key]
    if ok && e.expired(s.now()) {
        s.dropLocked(sh, key, e, true)
        e, ok = nil, false
    }
    var old []byte
    if ok {
        old = e.val
    }
    nv := append([]byte(nil), fn(old)...)
    if !s.reserve(len(nv) - len(old)) {
        return false
    }
    if ok {
        e.val = nv
        e.expireAt = s.deadline(ttl)
        s.mUpdates.Add(1)
        return true
    }
    sh.m[key] = &entry{val: nv, expireAt: s.deadline(ttl)}
    s.mKeys.Add(1)
    s.mSets.Add(1)
    return true
}

func (s *Store) Delete(key string) bool {
    sh := s.shardFor(key)
    sh.mu.Lock()
    defer sh.mu.Unlock()
    e, ok := sh.m[key]
    if ok {
        s.dropLocked(sh, key, e, false)
    }
    return ok
}

// Keys возвращает отсортированные живые ключи с данным префиксом.
func (s *Store) Keys(prefix string) []string {
    now := s.now()
    var out []string
    for i := range s.shards {
        sh := &s.shards[i]
        sh.mu.RLock()
        for k, e := range sh.m {
            if strings.HasPrefix(k, prefix) && !e.expired(now) {
                out = append(out, k)
            }
        }
        sh.mu.RUnlock()
    }
    sort.Strings(out)
    return out
}

// Sweep удаляет все просроченные записи и возвращает их число.
func (s *Store) Sweep() int {
    now := s.now()
    n := 0
    for i := range s.shards {
        sh := &s.shards[i]
        sh.mu.Lock()
        for k, e := range sh.m {
            if e.expired(now) {
                s.dropLocked(sh, k, e, true)
                n++
            }
        }
        sh.mu.Unlock()
    }
    return n
}

// ========================= Метрики =========================

// Stats: снэпшот метрик.
type Stats struct {
    Keys    uint64 `json:"keys" cbor:"keys"`
    Bytes   uint64 `json:"bytes" cbor:"bytes"`
    Sets    uint64 `json:"sets" cbor:"sets"`
    Hits    uint64 `json:"hits" cbor:"hits"`
    Misses  uint64 `json:"misses" cbor:"misses"`
    Dels    uint64 `json:"dels" cbor:"dels"`
    Expired uint64 `json:"expired" cbor:"expired"`
    Updates uint64 `json:"updates" cbor:"updates"`
}

func (s *Store) Metrics() Stats {
    return Stats{
        Keys:    s.mKeys.Load(),
        Bytes:   s.mBytes.Load(),
        Sets:    s.mSets.Load(),
        Hits:    s.mHits.Load(),
        Misses:  s.mMisses.Load(),
        Dels:    s.mDels.Load(),
        Expired: s.mExpired.Load(),
        Updates: s.mUpdates.Load(),
    }
}
