package httpapi

import "encoding/xml"

type twimlResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Connect twimlConnect `xml:"Connect"`
}

type twimlConnect struct {
	Stream twimlStream `xml:"Stream"`
}

type twimlStream struct {
	URL string `xml:"url,attr"`
}

// renderConnectTwiML produces the webhook reply that tells Twilio to open
// a bidirectional media stream to streamURL.
func renderConnectTwiML(streamURL string) ([]byte, error) {
	body, err := xml.MarshalIndent(twimlResponse{
		Connect: twimlConnect{Stream: twimlStream{URL: streamURL}},
	}, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
