// Package record defines the default flow record layout: an opaque,
// fixed-width byte block (width Width) and the accessors that read its
// built-in fields. The core sorter never depends on this concrete layout —
// internal/sortkey operates on any []byte of any declared width — but a
// runnable rwsort needs one real record shape, so this package is it.
package record

import (
	"encoding/binary"
	"net/netip"
	"time"

	"github.com/hrbrmstr/rwsort/internal/sortkey"
)

// Byte offsets and widths of the default flow record layout. IP addresses
// are stored in their 16-byte (IPv6-width) form so built-in accessors never
// need to branch on family; encodeAddr stores an IPv4 address in its
// IPv4-mapped 16-byte form and decodeAddr unmaps it back to IPv4 on read.
const (
	offSIP         = 0
	offDIP         = 16
	offNHIP        = 32
	offSPort       = 48
	offDPort       = 50
	offProtocol    = 52
	offPackets     = 53
	offBytes       = 61
	offInitFlags   = 69
	offSessFlags   = 70
	offSTimeMillis = 71
	offElapsedMs   = 79
	offSensor      = 83
	offInIf        = 85
	offOutIf       = 87
	offTCPState    = 89
	offApplication = 90
	offFlowClass   = 92
	offFlowType    = 93
	offICMPType    = 94
	offICMPCode    = 95

	// Width is the fixed size in bytes of the default flow record.
	Width = 96

	// ProtoICMP and ProtoICMPv6 are the protocol numbers for which
	// ICMPType/ICMPCode are meaningful; all other protocols read as 0.
	ProtoICMP   = 1
	ProtoICMPv6 = 58
)

// Record is one fixed-width flow record.
type Record []byte

// New allocates a zeroed record of the default width.
func New() Record { return make(Record, Width) }

func encodeAddr(b []byte, a netip.Addr) {
	if !a.IsValid() {
		return
	}
	v := a.As16()
	copy(b, v[:])
}

func decodeAddr(b []byte) netip.Addr {
	var v [16]byte
	copy(v[:], b)
	addr := netip.AddrFrom16(v)
	if addr.Is4In6() {
		return addr.Unmap()
	}
	return addr
}

// Setters used by the codec and by tests to build records field-by-field.

func (r Record) SetSIP(a netip.Addr)  { encodeAddr(r[offSIP:offSIP+16], a) }
func (r Record) SetDIP(a netip.Addr)  { encodeAddr(r[offDIP:offDIP+16], a) }
func (r Record) SetNHIP(a netip.Addr) { encodeAddr(r[offNHIP:offNHIP+16], a) }

func (r Record) SetSPort(p uint16) { binary.BigEndian.PutUint16(r[offSPort:], p) }
func (r Record) SetDPort(p uint16) { binary.BigEndian.PutUint16(r[offDPort:], p) }
func (r Record) SetProtocol(p uint8) { r[offProtocol] = p }
func (r Record) SetPackets(n uint64) { binary.BigEndian.PutUint64(r[offPackets:], n) }
func (r Record) SetBytes(n uint64)   { binary.BigEndian.PutUint64(r[offBytes:], n) }
func (r Record) SetInitFlags(f uint8) { r[offInitFlags] = f }
func (r Record) SetSessFlags(f uint8) { r[offSessFlags] = f }

func (r Record) SetSTime(t time.Time) {
	binary.BigEndian.PutUint64(r[offSTimeMillis:], uint64(t.UnixMilli()))
}
func (r Record) SetElapsed(d time.Duration) {
	binary.BigEndian.PutUint32(r[offElapsedMs:], uint32(d.Milliseconds()))
}

func (r Record) SetSensor(v uint16)      { binary.BigEndian.PutUint16(r[offSensor:], v) }
func (r Record) SetInIf(v uint16)        { binary.BigEndian.PutUint16(r[offInIf:], v) }
func (r Record) SetOutIf(v uint16)       { binary.BigEndian.PutUint16(r[offOutIf:], v) }
func (r Record) SetTCPState(v uint8)     { r[offTCPState] = v }
func (r Record) SetApplication(v uint16) { binary.BigEndian.PutUint16(r[offApplication:], v) }
func (r Record) SetFlowClass(v uint8)    { r[offFlowClass] = v }
func (r Record) SetFlowType(v uint8)     { r[offFlowType] = v }
func (r Record) SetICMPType(v uint8)     { r[offICMPType] = v }
func (r Record) SetICMPCode(v uint8)     { r[offICMPCode] = v }

// Getters, used directly by callers that want the typed value (CLI display,
// tests) rather than the generic sortkey.Value the built-in field registry
// below produces.

func (r Record) SIP() netip.Addr  { return decodeAddr(r[offSIP : offSIP+16]) }
func (r Record) DIP() netip.Addr  { return decodeAddr(r[offDIP : offDIP+16]) }
func (r Record) NHIP() netip.Addr { return decodeAddr(r[offNHIP : offNHIP+16]) }

func (r Record) SPort() uint16    { return binary.BigEndian.Uint16(r[offSPort:]) }
func (r Record) DPort() uint16    { return binary.BigEndian.Uint16(r[offDPort:]) }
func (r Record) Protocol() uint8  { return r[offProtocol] }
func (r Record) Packets() uint64  { return binary.BigEndian.Uint64(r[offPackets:]) }
func (r Record) Bytes() uint64    { return binary.BigEndian.Uint64(r[offBytes:]) }
func (r Record) InitFlags() uint8 { return r[offInitFlags] }
func (r Record) SessFlags() uint8 { return r[offSessFlags] }

func (r Record) STime() time.Time {
	return time.UnixMilli(int64(binary.BigEndian.Uint64(r[offSTimeMillis:]))).UTC()
}
func (r Record) Elapsed() time.Duration {
	return time.Duration(binary.BigEndian.Uint32(r[offElapsedMs:])) * time.Millisecond
}

// ETime is derived as STime + Elapsed at read time; it is never stored in
// the record.
func (r Record) ETime() time.Time { return r.STime().Add(r.Elapsed()) }

func (r Record) Sensor() uint16      { return binary.BigEndian.Uint16(r[offSensor:]) }
func (r Record) InIf() uint16        { return binary.BigEndian.Uint16(r[offInIf:]) }
func (r Record) OutIf() uint16       { return binary.BigEndian.Uint16(r[offOutIf:]) }
func (r Record) TCPState() uint8     { return r[offTCPState] }
func (r Record) Application() uint16 { return binary.BigEndian.Uint16(r[offApplication:]) }
func (r Record) FlowClass() uint8    { return r[offFlowClass] }
func (r Record) FlowType() uint8     { return r[offFlowType] }

// ICMPType and ICMPCode return 0 for non-ICMP protocols so they produce a
// well-defined secondary sort order without special-casing.
func (r Record) ICMPType() uint8 {
	if !r.isICMP() {
		return 0
	}
	return r[offICMPType]
}

func (r Record) ICMPCode() uint8 {
	if !r.isICMP() {
		return 0
	}
	return r[offICMPCode]
}

func (r Record) isICMP() bool {
	p := r.Protocol()
	return p == ProtoICMP || p == ProtoICMPv6
}

// BuiltInFields returns the registry of built-in sort-field descriptors for
// the default flow record layout, keyed by the canonical field name used in
// --fields. stime/stime-msec, etime/etime-msec and elapsed/elapsed-msec
// alias to the same accessor: the millisecond variant exists only for
// display elsewhere.
func BuiltInFields() map[string]sortkey.BuiltInField {
	f := func(name string, get sortkey.Accessor) sortkey.BuiltInField {
		return sortkey.BuiltInField{Name: name, Get: get}
	}
	fields := []sortkey.BuiltInField{
		f("sip", func(rec []byte) sortkey.Value { return sortkey.AddrValue(Record(rec).SIP()) }),
		f("dip", func(rec []byte) sortkey.Value { return sortkey.AddrValue(Record(rec).DIP()) }),
		f("nhip", func(rec []byte) sortkey.Value { return sortkey.AddrValue(Record(rec).NHIP()) }),
		f("sport", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).SPort())) }),
		f("dport", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).DPort())) }),
		f("protocol", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).Protocol())) }),
		f("packets", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).Packets())) }),
		f("bytes", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).Bytes())) }),
		f("initflags", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).InitFlags())) }),
		f("sessflags", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).SessFlags())) }),
		f("sensor", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).Sensor())) }),
		f("input", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).InIf())) }),
		f("output", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).OutIf())) }),
		f("tcpstate", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).TCPState())) }),
		f("application", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).Application())) }),
		f("class", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).FlowClass())) }),
		f("type", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).FlowType())) }),
		f("icmptype", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).ICMPType())) }),
		f("icmpcode", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).ICMPCode())) }),
	}
	// Time fields and their millisecond-display aliases share one accessor.
	stime := f("stime", func(rec []byte) sortkey.Value { return sortkey.IntValue(Record(rec).STime().UnixMilli()) })
	etime := f("etime", func(rec []byte) sortkey.Value { return sortkey.IntValue(Record(rec).ETime().UnixMilli()) })
	elapsed := f("elapsed", func(rec []byte) sortkey.Value { return sortkey.IntValue(int64(Record(rec).Elapsed())) })
	fields = append(fields, stime, etime, elapsed)

	reg := make(map[string]sortkey.BuiltInField, len(fields)+3)
	for _, bf := range fields {
		reg[bf.Name] = bf
	}
	reg["stime-msec"] = stime
	reg["etime-msec"] = etime
	reg["elapsed-msec"] = elapsed
	return reg
}
