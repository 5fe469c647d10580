// Package pka is a driver for the public key accelerator (PKA) of the
// STMicroelectronics STM32WBA55 microcontroller in Go.
//
// Using the accelerator requires three peripherals to be brought up in
// order: the oscillator, the true random number generator (the PKA draws
// entropy from it during initialisation) and the PKA itself. New performs
// this sequence; Dev.Compute then stages operands in the PKA RAM, starts
// the operation and reads back the result.
//
// Register access goes through a HAL. The simulation double in package
// pkasim allows the driver to run without hardware. On a Linux host with
// access to /dev/mem, NewMemHAL maps the physical register windows. When
// compiled with TinyGo for the target itself, MMIO accesses the registers
// directly.
//
// # Reference manual
//
// RM0493: STM32WBA5xxx multiprotocol wireless Bluetooth Low Energy and
// IEEE 802.15.4 Arm-based 32-bit MCUs.
package pka
