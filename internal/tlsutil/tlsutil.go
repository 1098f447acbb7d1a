// Package tlsutil builds the tls.Config for an https listener from its
// configured certificate and key files.
package tlsutil

import "crypto/tls"

// LoadConfig reads a PEM certificate chain and private key and returns a
// tls.Config ready to hand to an http.Server.
func LoadConfig(certificateFile, keyFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certificateFile, keyFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}
