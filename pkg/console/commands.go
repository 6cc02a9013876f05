// Copyright 2026 Mcuplane Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package console

import (
	"encoding/binary"
	"math"

	"github.com/mcuplane/mcuplane/pkg/ipc/message"
)

// Application-level command codes carried in the first payload byte.
// Their semantics belong to the workers; the console only assembles them.
const (
	cmdPing          = 0x01
	cmdVersion       = 0x02
	cmdNetworkStatus = 0x03
	cmdPowerStatus   = 0x04

	cmdWatchdogStatus  = 0x10
	cmdWatchdogEnable  = 0x11
	cmdWatchdogDisable = 0x12

	cmdMotorPowerOn  = 0x20
	cmdMotorPowerOff = 0x21
	cmdMotorEnable   = 0x22
	cmdMotorDisable  = 0x23
	cmdMotorStop     = 0x25
	cmdMotorPosition = 0x26
	cmdMotorStatus   = 0x27

	cmdDeviceStatus = 0x35

	cmdSensorTemperature = 0x40
	cmdSensorAll         = 0x41

	cmdDevLED      = 0x50
	cmdDevFan      = 0x51
	cmdDevHeater   = 0x52
	cmdDevLaser    = 0x53
	cmdDevPWMLight = 0x54

	cmdFileRequest = 0x50
	cmdFileCancel  = 0x51
	cmdFileStatus  = 0x53

	cmdFotaCancel = 0x61
	cmdFotaStatus = 0x62
)

// Device identifiers paired with the device-control command codes.
const (
	deviceIDLED      = 0
	deviceIDFan      = 1
	deviceIDHeater   = 2
	deviceIDLaser    = 3
	deviceIDPWMLight = 4
)

// buildSimple assembles a message whose payload is just the given bytes.
func buildSimple(kind message.Kind, seq uint32, payload ...byte) message.Message {
	m, _ := message.New(kind, seq, payload)

	return m
}

// buildMotorRotate assembles the rotate command: motor id, then angle and
// speed as native-endian float32 radians.
func buildMotorRotate(seq uint32, motorID uint8, angleRad, speedRad float32) message.Message {
	var payload [9]byte
	payload[0] = motorID
	binary.NativeEndian.PutUint32(payload[1:], math.Float32bits(angleRad))
	binary.NativeEndian.PutUint32(payload[5:], math.Float32bits(speedRad))

	m, _ := message.New(message.KindMotorCmd, seq, payload[:])

	return m
}

// buildDeviceControl assembles a device on/off/level command:
// command code, device id, state byte.
func buildDeviceControl(seq uint32, cmd, deviceID, state uint8) message.Message {
	return buildSimple(message.KindDeviceCmd, seq, cmd, deviceID, state)
}

func toRadians(deg float64) float32 {
	return float32(deg * math.Pi / 180)
}
