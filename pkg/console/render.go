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
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"

	"github.com/mcuplane/mcuplane/pkg/ipc/message"
)

// sensorFrameLen is the minimum payload for a fully decodable sensor
// frame: float32 temperature plus three uint16 readings.
const sensorFrameLen = 10

// RenderReply pretty-prints a reply message from the serial worker.
// Unknown kinds fall back to a hex dump of the payload.
func (c *Console) RenderReply(m message.Message) {
	switch m.Kind {
	case message.KindResponse:
		c.renderResponse(m)
	case message.KindSensorData:
		c.renderSensorData(m)
	case message.KindFileInfo:
		c.renderFileInfo(m)
	case message.KindFotaComplete:
		c.renderFotaComplete(m)
	default:
		fmt.Fprintf(c.out, "\nReceived reply, kind: %s (seq %d)\n", m.Kind, m.Seq)
		if m.Len > 0 {
			fmt.Fprintf(c.out, "Payload (%d bytes): %s\n", m.Len, hexPreview(m.Data()))
		}
	}
}

func (c *Console) renderResponse(m message.Message) {
	if m.Len < 4 {
		fmt.Fprintln(c.out, "\nCommand result: malformed response")
		return
	}

	result := int32(binary.NativeEndian.Uint32(m.Data()))
	if result == 0 {
		fmt.Fprintln(c.out, "\nCommand result: success")
	} else {
		fmt.Fprintf(c.out, "\nCommand result: failure, code %d\n", result)
	}
}

func (c *Console) renderSensorData(m message.Message) {
	fmt.Fprintln(c.out, "\nReceived sensor data")
	if m.Len < sensorFrameLen {
		fmt.Fprintln(c.out, "Sensor frame too short to decode")
		return
	}

	data := m.Data()
	temperature := math.Float32frombits(binary.NativeEndian.Uint32(data[0:4]))
	humidity := binary.NativeEndian.Uint16(data[4:6])
	light := binary.NativeEndian.Uint16(data[6:8])
	battery := binary.NativeEndian.Uint16(data[8:10])

	fmt.Fprintf(c.out, "Temperature=%.2f C, humidity=%d%%, light=%d, battery=%d%%\n",
		temperature, humidity, light, battery)
}

func (c *Console) renderFileInfo(m message.Message) {
	fmt.Fprintln(c.out, "\nReceived file info")
	if m.Len == 0 {
		return
	}

	data := m.Data()
	fmt.Fprintf(c.out, "File info length: %d\n", m.Len)

	// Frame is a NUL-terminated name followed by a uint32 size.
	nul := bytes.IndexByte(data, 0)
	if nul < 0 {
		nul = len(data)
	}
	fmt.Fprintf(c.out, "File name: %s\n", data[:nul])

	if len(data) >= nul+1+4 {
		size := binary.NativeEndian.Uint32(data[nul+1 : nul+5])
		fmt.Fprintf(c.out, "File size: %d bytes\n", size)
	}
}

func (c *Console) renderFotaComplete(m message.Message) {
	fmt.Fprintln(c.out, "\nFOTA upgrade complete")
	if m.Len == 0 {
		return
	}

	if m.Payload[0] == 0 {
		fmt.Fprintln(c.out, "FOTA result: success")
	} else {
		fmt.Fprintln(c.out, "FOTA result: failure")
	}
}

// hexPreview renders up to 32 payload bytes as hex.
func hexPreview(data []byte) string {
	const max = 32
	if len(data) <= max {
		return hex.EncodeToString(data)
	}

	return hex.EncodeToString(data[:max]) + "..."
}
