// Package rpi reads Raspberry Pi device identity and network state.
package rpi
