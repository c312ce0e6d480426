// Package hal defines the hardware capability interface the polling
// engine consumes: device enumeration, exclusive handle open/close,
// option introspection and value reads.
//
// The engine never talks to hardware directly; it sees only the
// Backend and Handle interfaces. Concrete hardware protocols register
// themselves by name via Register, like database/sql drivers. This
// package ships a single backend, the scripted in-memory "mem"
// backend, which drives the engine test suite and development runs.
//
// Option index 0 is reserved: it is the option-count pseudo-option and
// is surfaced through Handle.OptionCount rather than Read.
package hal
