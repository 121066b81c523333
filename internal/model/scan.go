package model

import (
	"strings"
	"time"
)

// ScanType は公開カードの閲覧経路を表す。
type ScanType string

const (
	// ScanTypeQR はQRコード経由の閲覧。
	ScanTypeQR ScanType = "QR"
	// ScanTypeNFC はNFCタグ経由の閲覧。
	ScanTypeNFC ScanType = "NFC"
)

// ParseScanType は大文字小文字を区別せずにScanTypeを解析する。
func ParseScanType(s string) (ScanType, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "QR":
		return ScanTypeQR, true
	case "NFC":
		return ScanTypeNFC, true
	default:
		return "", false
	}
}

// DeviceClass は閲覧端末の大まかな分類を表す。
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
)

// ParseDeviceClass は大文字小文字を区別せずにDeviceClassを解析する。
func ParseDeviceClass(s string) (DeviceClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mobile":
		return DeviceMobile, true
	case "tablet":
		return DeviceTablet, true
	case "desktop":
		return DeviceDesktop, true
	default:
		return "", false
	}
}

// ScanEvent は公開カードの閲覧1回分の記録。作成後は変更されない。
type ScanEvent struct {
	ID          string
	CardID      string
	ScanType    ScanType
	DeviceClass DeviceClass
	CreatedAt   time.Time
}
