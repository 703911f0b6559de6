package multipacket

import (
    "time"

    "go.uber.org/zap"

    "aggmesh/pkg/wire"
)

// InState is the lifecycle of an inbound message. A message is Partial while
// fragments are held for it and Absent otherwise, including once delivered.
type InState uint8

const (
    Absent InState = iota
    Partial
)

type recordKey struct {
    id         uint16
    originator wire.Addr
}

type record struct {
    total    int
    lastSeq  uint8
    buf      []byte
    updated  time.Duration
}

func (c *Conn) onFragment(from wire.Addr, raw []byte) {
    if c.closed {
        return
    }
    f, err := wire.DecodeFragment(raw)
    if err != nil || f.Header.TotalLen == 0 {
        c.stats.FragmentsDropped++
        c.log.Debug("malformed fragment", zap.Stringer("from", from), zap.Error(err))
        return
    }
    c.stats.FragmentsReceived++
    h := f.Header
    key := recordKey{id: h.MessageID, originator: h.Originator}
    rec, ok := c.records[key]

    if h.Seq == 0 {
        if ok {
            // sender restarted this id; the old partial message cannot complete
            c.abandon(key, rec, "restarted")
        }
        c.startRecord(key, f)
        return
    }
    if !ok {
        c.stats.FragmentsDropped++
        return
    }
    if h.Seq != rec.lastSeq+1 || int(h.TotalLen) != rec.total {
        c.stats.FragmentsDropped++
        c.abandon(key, rec, "out of sequence")
        return
    }
    if len(rec.buf)+len(f.Data) > rec.total {
        c.stats.FragmentsDropped++
        c.abandon(key, rec, "overflow")
        return
    }
    rec.buf = append(rec.buf, f.Data...)
    rec.lastSeq = h.Seq
    rec.updated = c.sched.Now()
    if len(rec.buf) < rec.total {
        return
    }
    c.release(key, rec)
    c.deliver(h.Originator, rec.buf)
}

func (c *Conn) startRecord(key recordKey, f wire.Fragment) {
    total := int(f.Header.TotalLen)
    if len(f.Data) == total {
        c.stats.SingleFrame++
        c.deliver(key.originator, append([]byte(nil), f.Data...))
        return
    }
    if total > c.opts.MaxMessage || c.reassemblyUsed+total > c.opts.MaxReassemblyBytes {
        c.stats.FragmentsDropped++
        c.log.Warn("no room to reassemble message",
            zap.Uint16("id", key.id), zap.Stringer("originator", key.originator), zap.Int("len", total))
        return
    }
    rec := &record{total: total, buf: make([]byte, 0, total), updated: c.sched.Now()}
    rec.buf = append(rec.buf, f.Data...)
    c.records[key] = rec
    c.reassemblyUsed += total
}

func (c *Conn) deliver(source wire.Addr, payload []byte) {
    c.stats.MessagesDelivered++
    c.h.Recv(c, source, payload)
}

func (c *Conn) release(key recordKey, rec *record) {
    delete(c.records, key)
    c.reassemblyUsed -= rec.total
}

func (c *Conn) abandon(key recordKey, rec *record, reason string) {
    c.release(key, rec)
    c.stats.RecordsAbandoned++
    c.log.Debug("partial message abandoned",
        zap.String("reason", reason), zap.Uint16("id", key.id), zap.Stringer("originator", key.originator),
        zap.Int("received", len(rec.buf)), zap.Int("total", rec.total))
}

func (c *Conn) expireRecords() {
    now := c.sched.Now()
    for key, rec := range c.records {
        if now-rec.updated < c.opts.ReassemblyTimeout {
            continue
        }
        c.release(key, rec)
        c.stats.RecordsExpired++
        c.log.Debug("partial message expired", zap.Uint16("id", key.id), zap.Stringer("originator", key.originator))
    }
}

// State reports where the message (id, originator) is in reassembly.
// Delivered messages leave no trace and report Absent.
func (c *Conn) State(id uint16, originator wire.Addr) InState {
    if _, ok := c.records[recordKey{id, originator}]; ok {
        return Partial
    }
    return Absent
}
