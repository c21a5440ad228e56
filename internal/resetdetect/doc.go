// Package resetdetect implements the double-reset gesture: two resets in
// quick succession ask the device to skip its known network and open the
// configuration portal.
//
// The detector keeps a 12-byte record in a Region that survives a warm
// restart but not a power cycle:
//
//	offset+0  uint32 LE  magic 0xD0D01234 when armed
//	offset+4  uint64 LE  Unix nanoseconds at arming
//
// On the daemon the region is a file under /run (tmpfs). Tests use
// MemoryRegion.
package resetdetect
