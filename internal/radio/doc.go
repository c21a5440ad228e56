// Package radio is the WiFi boundary of the provisioner: joining a known
// or newly supplied network, running the configuration access point and
// listing visible networks.
//
// Two backends are provided. Sim keeps everything in memory and is used for
// desktop runs and tests. NMCLI (linux only) drives NetworkManager through
// the nmcli command, which also persists joined networks across boots.
package radio
