package helpers

// FormatAddressHeader renders an address the way it appears in a header,
// "Name <address>" when a display name is present, bare address otherwise.
func FormatAddressHeader(name, address string) string {
	if name == "" {
		return address
	}
	return name + " <" + address + ">"
}
