// Package ota is the over-the-air update boundary. The service loop calls
// Begin once at boot and ServiceOnce on every tick. Installing an image is
// left to an Installer; this package only advertises the device and
// delivers invitations.
package ota
