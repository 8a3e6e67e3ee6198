// Package device enumerates attached storage devices for source selection.
// Listing shells out to the platform's own tooling, so it degrades politely
// where that tooling is missing.
package device

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Device describes one storage device or partition.
type Device struct {
	Path       string
	Name       string
	Size       int64
	SizeHuman  string
	Filesystem string
	Mountpoint string
	Removable  bool
}

// List returns the storage devices visible on this machine.
func List() ([]Device, error) {
	switch runtime.GOOS {
	case "linux":
		return listLinux()
	case "darwin":
		return listDarwin()
	case "windows":
		return listWindows()
	default:
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
}

func listLinux() ([]Device, error) {
	cmd := exec.Command("lsblk", "-b", "-o", "NAME,SIZE,FSTYPE,MOUNTPOINT,RM", "-n", "-l")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run lsblk: %w", err)
	}

	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		parts := strings.Fields(scanner.Text())
		if len(parts) < 2 {
			continue
		}

		sizeBytes, _ := strconv.ParseInt(parts[1], 10, 64)
		d := Device{
			Path:      "/dev/" + parts[0],
			Name:      parts[0],
			Size:      sizeBytes,
			SizeHuman: humanSize(sizeBytes),
		}
		if len(parts) >= 3 {
			d.Filesystem = parts[2]
		}
		if len(parts) >= 4 {
			d.Mountpoint = parts[3]
		}
		if len(parts) >= 5 {
			d.Removable = parts[4] == "1"
		}
		devices = append(devices, d)
	}
	return devices, nil
}

func listDarwin() ([]Device, error) {
	cmd := exec.Command("diskutil", "list")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run diskutil: %w", err)
	}

	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(output))
	var internalDisk bool
	for scanner.Scan() {
		line := scanner.Text()

		// Disk header line: /dev/disk0 (internal, physical):
		if strings.HasPrefix(line, "/dev/disk") {
			internalDisk = strings.Contains(line, "internal")
			continue
		}

		// Partition line:    1: EFI EFI 209.7 MB disk0s1
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#:") || !strings.Contains(line, ":") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}

		var deviceID string
		for _, p := range parts {
			if strings.HasPrefix(p, "disk") {
				deviceID = p
			}
		}
		if deviceID == "" {
			continue
		}

		var sizeStr string
		var sizeBytes int64
		for i := 0; i+1 < len(parts); i++ {
			switch parts[i+1] {
			case "B", "KB", "MB", "GB", "TB":
				sizeStr = parts[i] + " " + parts[i+1]
				sizeBytes = parseSize(parts[i], parts[i+1])
			}
		}

		fsType := parts[1]
		var nameParts []string
		for i := 2; i < len(parts)-3; i++ {
			nameParts = append(nameParts, parts[i])
		}
		name := strings.Join(nameParts, " ")
		if name == "" {
			name = deviceID
		}

		devices = append(devices, Device{
			Path:       "/dev/" + deviceID,
			Name:       name,
			Size:       sizeBytes,
			SizeHuman:  sizeStr,
			Filesystem: fsType,
			Removable:  !internalDisk,
		})
	}
	return devices, nil
}

func listWindows() ([]Device, error) {
	cmd := exec.Command("powershell", "-Command",
		"Get-Disk | ForEach-Object { '{0}|{1}|{2}' -f $_.Number, $_.FriendlyName, $_.Size }")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run Get-Disk: %w", err)
	}

	var devices []Device
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		parts := strings.SplitN(strings.TrimSpace(scanner.Text()), "|", 3)
		if len(parts) != 3 {
			continue
		}
		num, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		size, _ := strconv.ParseInt(parts[2], 10, 64)
		devices = append(devices, Device{
			Path:      fmt.Sprintf(`\\.\PhysicalDrive%d`, num),
			Name:      parts[1],
			Size:      size,
			SizeHuman: humanSize(size),
		})
	}
	return devices, nil
}

func parseSize(value, unit string) int64 {
	v, _ := strconv.ParseFloat(value, 64)
	switch unit {
	case "KB":
		v *= 1024
	case "MB":
		v *= 1024 * 1024
	case "GB":
		v *= 1024 * 1024 * 1024
	case "TB":
		v *= 1024 * 1024 * 1024 * 1024
	}
	return int64(v)
}

func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
