// Package pkareg describes the registers and the RAM layout of the
// peripherals used by the PKA driver.
//
// Only the bits exercised by the driver are defined. Refer to RM0493 for the
// complete register map.
package pkareg

import (
	"encoding/json"
	"fmt"
)

// Peripheral base addresses (secure aliases).
const (
	RCCBase uint32 = 0x5602_0c00
	RNGBase uint32 = 0x520c_0800
	PKABase uint32 = 0x520c_2000
)

// Window sizes of the peripherals, in bytes.
const (
	RCCSize = 0x400
	RNGSize = 0x400
	PKASize = 0x2000
)

// RCC register offsets.
const (
	RCCCR      = 0x000
	RCCAHB2ENR = 0x08c
	RCCCCIPR2  = 0x0e4
)

// RCC_CR bits.
const (
	RCCCRHSION  uint32 = 1 << 8
	RCCCRHSIRDY uint32 = 1 << 10
	RCCCRHSEON  uint32 = 1 << 16
	RCCCRHSERDY uint32 = 1 << 17
)

// RCC_AHB2ENR bits.
const (
	RCCAHB2ENRRNGEN uint32 = 1 << 18
	RCCAHB2ENRPKAEN uint32 = 1 << 19
)

// RCC_CCIPR2 RNGSEL field.
const (
	RCCCCIPR2RNGSELPos  = 12
	RCCCCIPR2RNGSELMask = 0x3
)

// RNG register offsets.
const (
	RNGCR = 0x00
	RNGSR = 0x04
	RNGDR = 0x08
)

// RNG_CR bits.
const (
	RNGCRRNGEN      uint32 = 1 << 2
	RNGCRIE         uint32 = 1 << 3
	RNGCRCED        uint32 = 1 << 5
	RNGCRNISTC      uint32 = 1 << 12
	RNGCRCONDRST    uint32 = 1 << 30
	RNGCRCONFIGLOCK uint32 = 1 << 31
)

// RNG_SR bits.
const (
	RNGSRDRDY uint32 = 1 << 0
	RNGSRCECS uint32 = 1 << 1
	RNGSRSECS uint32 = 1 << 2
	RNGSRCEIS uint32 = 1 << 5
	RNGSRSEIS uint32 = 1 << 6
)

// PKA register offsets.
const (
	PKACR    = 0x00
	PKASR    = 0x04
	PKACLRFR = 0x08
)

// PKA_CR bits.
const (
	PKACREN       uint32 = 1 << 0
	PKACRSTART    uint32 = 1 << 1
	PKACRMODEPos         = 8
	PKACRMODEMask uint32 = 0x3f
)

// PKA_SR bits. PKA_CLRFR uses the same positions for the matching clear
// flags.
const (
	PKASRINITOK   uint32 = 1 << 0
	PKASRBUSY     uint32 = 1 << 16
	PKASRPROCENDF uint32 = 1 << 17
	PKASRRAMERRF  uint32 = 1 << 19
	PKASRADDRERRF uint32 = 1 << 20
	PKASROPERRF   uint32 = 1 << 21
)

// PKA_CLRFR bits.
const (
	PKACLRFRPROCENDFC = PKASRPROCENDF
	PKACLRFRRAMERRFC  = PKASRRAMERRF
	PKACLRFRADDRERRFC = PKASRADDRERRF
	PKACLRFROPERRFC   = PKASROPERRF
)

// PKA operating modes written to PKA_CR.MODE.
const (
	ModeArithmeticAdd uint32 = 0x09
	ModeArithmeticSub uint32 = 0x0a
	ModeArithmeticMul uint32 = 0x0b
	ModeModularAdd    uint32 = 0x0e
	ModeModularSub    uint32 = 0x0f
)

// PKA RAM layout, as byte offsets from PKABase.
const (
	// RAMStart is the first byte of the PKA RAM.
	RAMStart = 0x400
	// RAMLimit bounds every access: offset+size must stay below it.
	RAMLimit = 0x13ff

	OperandLengthOffset = 0x408
	OperandAOffset      = 0xa50
	OperandBOffset      = 0xc68
	ResultOffset        = 0xe78
	ModulusOffset       = 0x1088
)

// MaxOperandBits is the widest operand the RAM layout holds.
const MaxOperandBits = 3136

type RCCControl struct {
	Bits uint32
}

type rccControlBits struct {
	HSIOn    bool `json:"hsion"`
	HSIReady bool `json:"hsirdy"`
	HSEOn    bool `json:"hseon"`
	HSEReady bool `json:"hserdy"`
}

func (r RCCControl) HSIOn() bool    { return r.Bits&RCCCRHSION != 0 }
func (r RCCControl) HSIReady() bool { return r.Bits&RCCCRHSIRDY != 0 }
func (r RCCControl) HSEOn() bool    { return r.Bits&RCCCRHSEON != 0 }
func (r RCCControl) HSEReady() bool { return r.Bits&RCCCRHSERDY != 0 }

func (r RCCControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(rccControlBits{
		HSIOn:    r.HSIOn(),
		HSIReady: r.HSIReady(),
		HSEOn:    r.HSEOn(),
		HSEReady: r.HSEReady(),
	})
}

type AHB2Enable struct {
	Bits uint32
}

type ahb2EnableBits struct {
	RNG bool `json:"rngen"`
	PKA bool `json:"pkaen"`
}

func (a AHB2Enable) RNG() bool { return a.Bits&RCCAHB2ENRRNGEN != 0 }
func (a AHB2Enable) PKA() bool { return a.Bits&RCCAHB2ENRPKAEN != 0 }

func (a AHB2Enable) MarshalJSON() ([]byte, error) {
	return json.Marshal(ahb2EnableBits{RNG: a.RNG(), PKA: a.PKA()})
}

// RNGClockSelect is the RCC_CCIPR2 register.
type RNGClockSelect struct {
	Bits uint32
}

// Source returns the RNGSEL field.
func (c RNGClockSelect) Source() uint8 {
	return uint8(c.Bits >> RCCCCIPR2RNGSELPos & RCCCCIPR2RNGSELMask)
}

func (c RNGClockSelect) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Source uint8 `json:"rngsel"`
	}{c.Source()})
}

type RNGControl struct {
	Bits uint32
}

type rngControlBits struct {
	Enabled          bool `json:"rngen"`
	InterruptEnabled bool `json:"ie"`
	ClockErrorDetect bool `json:"ced"`
	NISTCustom       bool `json:"nistc"`
	CondReset        bool `json:"condrst"`
	ConfigLock       bool `json:"configlock"`
}

func (r RNGControl) Enabled() bool          { return r.Bits&RNGCRRNGEN != 0 }
func (r RNGControl) InterruptEnabled() bool { return r.Bits&RNGCRIE != 0 }

// ClockErrorDetect reports the CED bit. Note that CED set means clock error
// detection is disabled.
func (r RNGControl) ClockErrorDetect() bool { return r.Bits&RNGCRCED != 0 }
func (r RNGControl) NISTCustom() bool       { return r.Bits&RNGCRNISTC != 0 }
func (r RNGControl) CondReset() bool        { return r.Bits&RNGCRCONDRST != 0 }
func (r RNGControl) ConfigLock() bool       { return r.Bits&RNGCRCONFIGLOCK != 0 }

func (r RNGControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(rngControlBits{
		Enabled:          r.Enabled(),
		InterruptEnabled: r.InterruptEnabled(),
		ClockErrorDetect: r.ClockErrorDetect(),
		NISTCustom:       r.NISTCustom(),
		CondReset:        r.CondReset(),
		ConfigLock:       r.ConfigLock(),
	})
}

type RNGStatus struct {
	Bits uint32
}

type rngStatusBits struct {
	DataReady           bool `json:"drdy"`
	ClockError          bool `json:"cecs"`
	SeedError           bool `json:"secs"`
	ClockErrorInterrupt bool `json:"ceis"`
	SeedErrorInterrupt  bool `json:"seis"`
}

func (r RNGStatus) DataReady() bool           { return r.Bits&RNGSRDRDY != 0 }
func (r RNGStatus) ClockError() bool          { return r.Bits&RNGSRCECS != 0 }
func (r RNGStatus) SeedError() bool           { return r.Bits&RNGSRSECS != 0 }
func (r RNGStatus) ClockErrorInterrupt() bool { return r.Bits&RNGSRCEIS != 0 }
func (r RNGStatus) SeedErrorInterrupt() bool  { return r.Bits&RNGSRSEIS != 0 }

func (r RNGStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(rngStatusBits{
		DataReady:           r.DataReady(),
		ClockError:          r.ClockError(),
		SeedError:           r.SeedError(),
		ClockErrorInterrupt: r.ClockErrorInterrupt(),
		SeedErrorInterrupt:  r.SeedErrorInterrupt(),
	})
}

type PKAControl struct {
	Bits uint32
}

type pkaControlBits struct {
	Enabled bool   `json:"en"`
	Start   bool   `json:"start"`
	Mode    string `json:"mode"`
}

func (p PKAControl) Enabled() bool { return p.Bits&PKACREN != 0 }
func (p PKAControl) Start() bool   { return p.Bits&PKACRSTART != 0 }
func (p PKAControl) Mode() uint32  { return p.Bits >> PKACRMODEPos & PKACRMODEMask }

func (p PKAControl) MarshalJSON() ([]byte, error) {
	return json.Marshal(pkaControlBits{
		Enabled: p.Enabled(),
		Start:   p.Start(),
		Mode:    fmt.Sprintf("%#02x", p.Mode()),
	})
}

type PKAStatus struct {
	Bits uint32
}

type pkaStatusBits struct {
	InitOK       bool `json:"initok"`
	Busy         bool `json:"busy"`
	ProcEnd      bool `json:"procendf"`
	RAMError     bool `json:"ramerrf"`
	AddressError bool `json:"addrerrf"`
	OpError      bool `json:"operrf"`
}

func (p PKAStatus) InitOK() bool       { return p.Bits&PKASRINITOK != 0 }
func (p PKAStatus) Busy() bool         { return p.Bits&PKASRBUSY != 0 }
func (p PKAStatus) ProcEnd() bool      { return p.Bits&PKASRPROCENDF != 0 }
func (p PKAStatus) RAMError() bool     { return p.Bits&PKASRRAMERRF != 0 }
func (p PKAStatus) AddressError() bool { return p.Bits&PKASRADDRERRF != 0 }
func (p PKAStatus) OpError() bool      { return p.Bits&PKASROPERRF != 0 }

func (p PKAStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(pkaStatusBits{
		InitOK:       p.InitOK(),
		Busy:         p.Busy(),
		ProcEnd:      p.ProcEnd(),
		RAMError:     p.RAMError(),
		AddressError: p.AddressError(),
		OpError:      p.OpError(),
	})
}

// Snapshot holds the decoded state of every register the driver touches.
type Snapshot struct {
	RCCControl     RCCControl     `json:"rcc_cr"`
	AHB2Enable     AHB2Enable     `json:"rcc_ahb2enr"`
	RNGClockSelect RNGClockSelect `json:"rcc_ccipr2"`
	RNGControl     RNGControl     `json:"rng_cr"`
	RNGStatus      RNGStatus      `json:"rng_sr"`
	PKAControl     PKAControl     `json:"pka_cr"`
	PKAStatus      PKAStatus      `json:"pka_sr"`
}
