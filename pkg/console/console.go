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

// Package console implements the operator menu: it renders the command
// menu, turns menu selections into wire messages, and pretty-prints the
// replies that come back from the serial worker.
package console

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mcuplane/mcuplane/pkg/logger"

	"github.com/mcuplane/mcuplane/pkg/ipc/message"
)

// Console drives the interactive menu on a reader/writer pair, normally
// stdin/stdout. Sequence numbers come from the supervisor so console
// commands and internally generated messages share one counter.
type Console struct {
	log     *zap.SugaredLogger
	in      *bufio.Reader
	out     io.Writer
	nextSeq func() uint32
}

// New returns a console bound to the given streams. nextSeq must return
// a fresh sequence number on every call.
func New(in io.Reader, out io.Writer, nextSeq func() uint32) *Console {
	return &Console{
		log:     logger.For(logger.ComponentConsole),
		in:      bufio.NewReader(in),
		out:     out,
		nextSeq: nextSeq,
	}
}

const menuText = `
+----------------------------------------------------------+
|              Air8000 MCU Control Center                  |
+----------------------------------------------------------+
|  [System]                                                |
|    1. Ping test            2. Firmware version           |
|    3. Network status       4. Power status               |
+----------------------------------------------------------+
|  [Watchdog]                                              |
|    10. Query status        11. Enable watchdog           |
|    12. Disable watchdog    13. Send heartbeat            |
+----------------------------------------------------------+
|  [Motor control]                                         |
|    20. Motor power on      21. Motor power off           |
|    22. Enable motor        23. Disable motor             |
|    24. Rotate motor        25. Emergency stop            |
|    26. Get position        27. Get all motor status      |
+----------------------------------------------------------+
|  [Devices]                                               |
|    30. LED control         31. Fan control               |
|    32. Heater control      33. Laser control             |
|    34. PWM fill light      35. Device status             |
+----------------------------------------------------------+
|  [Sensors]                                               |
|    40. Read temperature    41. Read all sensors          |
+----------------------------------------------------------+
|  [File transfer]                                         |
|    50. Request transfer    51. Cancel transfer           |
|    53. Transfer status     54. Transfer file             |
+----------------------------------------------------------+
|  [FOTA]                                                  |
|    60. Start upgrade       61. Cancel upgrade            |
|    62. Upgrade status                                    |
+----------------------------------------------------------+
|    0. Exit                                               |
+----------------------------------------------------------+
Select option: `

// PrintMenu writes the menu and the selection prompt.
func (c *Console) PrintMenu() {
	fmt.Fprint(c.out, menuText)
}

// ReadChoice reads one line from the input and parses the leading
// decimal selection. ok is false when the line is not a number or the
// input stream is exhausted.
func (c *Console) ReadChoice() (choice int, ok bool, err error) {
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return 0, false, err
	}

	n, convErr := strconv.Atoi(strings.TrimSpace(line))
	if convErr != nil {
		return 0, false, nil
	}

	return n, true, nil
}

// Command maps a menu choice to the message to dispatch, prompting for
// extra parameters where the command needs them. send reports whether a
// message should be sent; quit reports the exit selection.
func (c *Console) Command(choice int) (m message.Message, send bool, quit bool) {
	switch choice {
	case 0:
		return message.Message{}, false, true

	case 1:
		fmt.Fprintln(c.out, "Sending ping...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdPing), true, false
	case 2:
		fmt.Fprintln(c.out, "Requesting firmware version...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdVersion), true, false
	case 3:
		fmt.Fprintln(c.out, "Querying network status...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdNetworkStatus), true, false
	case 4:
		fmt.Fprintln(c.out, "Querying power status...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdPowerStatus), true, false

	case 10:
		fmt.Fprintln(c.out, "Querying watchdog status...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdWatchdogStatus), true, false
	case 11:
		fmt.Fprintln(c.out, "Enabling watchdog...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdWatchdogEnable), true, false
	case 12:
		fmt.Fprintln(c.out, "Disabling watchdog...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdWatchdogDisable), true, false
	case 13:
		fmt.Fprintln(c.out, "Sending heartbeat...")
		return buildSimple(message.KindHeartbeat, c.nextSeq()), true, false

	case 20:
		fmt.Fprintln(c.out, "Switching motor power on...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdMotorPowerOn, 1), true, false
	case 21:
		fmt.Fprintln(c.out, "Switching motor power off...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdMotorPowerOff, 0), true, false
	case 22:
		id := c.promptInt("Motor ID (1=Y, 2=X, 3=Z): ")
		fmt.Fprintln(c.out, "Enabling motor...")
		return buildSimple(message.KindMotorCmd, c.nextSeq(), cmdMotorEnable, uint8(id)), true, false
	case 23:
		id := c.promptInt("Motor ID: ")
		fmt.Fprintln(c.out, "Disabling motor...")
		return buildSimple(message.KindMotorCmd, c.nextSeq(), cmdMotorDisable, uint8(id)), true, false
	case 24:
		id := c.promptInt("Motor ID: ")
		angle := c.promptFloat("Angle (degrees): ")
		speed := c.promptFloat("Speed (degrees/s): ")
		fmt.Fprintln(c.out, "Sending rotate command...")
		return buildMotorRotate(c.nextSeq(), uint8(id), toRadians(angle), toRadians(speed)), true, false
	case 25:
		id := c.promptInt("Motor ID: ")
		fmt.Fprintln(c.out, "Sending emergency stop...")
		return buildSimple(message.KindMotorCmd, c.nextSeq(), cmdMotorStop, uint8(id)), true, false
	case 26:
		id := c.promptInt("Motor ID: ")
		fmt.Fprintln(c.out, "Requesting motor position...")
		return buildSimple(message.KindMotorCmd, c.nextSeq(), cmdMotorPosition, uint8(id)), true, false
	case 27:
		fmt.Fprintln(c.out, "Requesting all motor status...")
		return buildSimple(message.KindMotorCmd, c.nextSeq(), cmdMotorStatus), true, false

	case 30:
		s := c.promptInt("LED state (0=off, 1=on, 2=blink): ")
		m := buildDeviceControl(c.nextSeq(), cmdDevLED, deviceIDLED, uint8(s))
		c.describeDeviceControl(cmdDevLED, uint8(s))
		return m, true, false
	case 31:
		s := c.promptInt("Fan state (0=off, 1=on): ")
		m := buildDeviceControl(c.nextSeq(), cmdDevFan, deviceIDFan, uint8(s))
		c.describeDeviceControl(cmdDevFan, uint8(s))
		return m, true, false
	case 32:
		s := c.promptInt("Heater state (0=off, 1=on): ")
		m := buildDeviceControl(c.nextSeq(), cmdDevHeater, deviceIDHeater, uint8(s))
		c.describeDeviceControl(cmdDevHeater, uint8(s))
		return m, true, false
	case 33:
		s := c.promptInt("Laser state (0=off, 1=on): ")
		m := buildDeviceControl(c.nextSeq(), cmdDevLaser, deviceIDLaser, uint8(s))
		c.describeDeviceControl(cmdDevLaser, uint8(s))
		return m, true, false
	case 34:
		s := c.promptInt("Fill light brightness (0-255): ")
		m := buildDeviceControl(c.nextSeq(), cmdDevPWMLight, deviceIDPWMLight, uint8(s))
		c.describeDeviceControl(cmdDevPWMLight, uint8(s))
		return m, true, false
	case 35:
		id := c.promptInt("Device ID: ")
		fmt.Fprintln(c.out, "Querying device status...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdDeviceStatus, uint8(id)), true, false

	case 40:
		id := c.promptInt("Sensor ID: ")
		fmt.Fprintln(c.out, "Requesting temperature...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdSensorTemperature, uint8(id)), true, false
	case 41:
		fmt.Fprintln(c.out, "Requesting all sensors...")
		return buildSimple(message.KindDeviceCmd, c.nextSeq(), cmdSensorAll), true, false

	case 50:
		fmt.Fprintln(c.out, "Requesting file transfer...")
		return buildSimple(message.KindFileInfo, c.nextSeq(), cmdFileRequest), true, false
	case 51:
		fmt.Fprintln(c.out, "Cancelling file transfer...")
		return buildSimple(message.KindFileComplete, c.nextSeq(), cmdFileCancel, 1), true, false
	case 53:
		fmt.Fprintln(c.out, "Requesting transfer status...")
		return buildSimple(message.KindFileInfo, c.nextSeq(), cmdFileStatus), true, false
	case 54:
		fmt.Fprintln(c.out, "Starting file transfer...")
		return buildSimple(message.KindFileStart, c.nextSeq()), true, false

	case 60:
		fmt.Fprintln(c.out, "Starting FOTA upgrade...")
		return buildSimple(message.KindFotaStart, c.nextSeq()), true, false
	case 61:
		fmt.Fprintln(c.out, "Cancelling FOTA upgrade...")
		return buildSimple(message.KindFotaStart, c.nextSeq(), cmdFotaCancel), true, false
	case 62:
		fmt.Fprintln(c.out, "Requesting FOTA status...")
		return buildSimple(message.KindFotaStart, c.nextSeq(), cmdFotaStatus), true, false

	default:
		c.log.Warnf("Unknown menu selection %d", choice)
		fmt.Fprintln(c.out, "Unknown command")
		return message.Message{}, false, false
	}
}

func (c *Console) promptInt(prompt string) int {
	fmt.Fprint(c.out, prompt)
	line, _ := c.in.ReadString('\n')
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		c.log.Debugf("Unparsable integer input %q, using 0", strings.TrimSpace(line))
		return 0
	}

	return n
}

func (c *Console) promptFloat(prompt string) float64 {
	fmt.Fprint(c.out, prompt)
	line, _ := c.in.ReadString('\n')
	f, err := strconv.ParseFloat(strings.TrimSpace(line), 64)
	if err != nil {
		c.log.Debugf("Unparsable numeric input %q, using 0", strings.TrimSpace(line))
		return 0
	}

	return f
}

// describeDeviceControl echoes what was just commanded so the operator
// can see the device and state without decoding the payload.
func (c *Console) describeDeviceControl(cmd, state uint8) {
	var device string
	switch cmd {
	case cmdDevLED:
		device = "LED"
	case cmdDevFan:
		device = "fan"
	case cmdDevHeater:
		device = "heater"
	case cmdDevLaser:
		device = "laser"
	case cmdDevPWMLight:
		device = "fill light"
	default:
		device = "unknown"
	}

	var stateText string
	switch {
	case cmd == cmdDevPWMLight:
		stateText = strconv.Itoa(int(state))
	case cmd == cmdDevLED && state == 2:
		stateText = "blink"
	case state == 0:
		stateText = "off"
	case state == 1:
		stateText = "on"
	default:
		stateText = "unknown"
	}

	fmt.Fprintf(c.out, "Command sent: %s -> %s, awaiting result...\n", device, stateText)
}
