package wire

import "encoding/xml"

// DeviceList is the `list` element published at PEP node
// eu.siacs.conversations.axolotl.devicelist, per section 6.
type DeviceList struct {
	XMLName xml.Name     `xml:"eu.siacs.conversations.axolotl list"`
	Devices []DeviceItem `xml:"device"`
}

type DeviceItem struct {
	XMLName xml.Name `xml:"device"`
	ID      uint32   `xml:"id,attr"`
}

// EncodeDeviceList builds a DeviceList element from a set of device ids.
func EncodeDeviceList(ids []uint32) *DeviceList {
	devices := make([]DeviceItem, len(ids))
	for i, id := range ids {
		devices[i] = DeviceItem{ID: id}
	}
	return &DeviceList{Devices: devices}
}

// IDs extracts the device ids from a DeviceList.
func (l *DeviceList) IDs() []uint32 {
	ids := make([]uint32, len(l.Devices))
	for i, d := range l.Devices {
		ids[i] = d.ID
	}
	return ids
}
