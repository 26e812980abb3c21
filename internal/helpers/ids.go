package helpers

// SafeIDPrefix shortens a container ID to the familiar 12-character form.
func SafeIDPrefix(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
