// Copyright 2025 Worunie Project
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

package slackapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

// signatureVersion is the fixed prefix of the Slack signing scheme.
const signatureVersion = "v0"

// maxTimestampSkew bounds how stale a signed request may be before it is
// rejected as a possible replay.
const maxTimestampSkew = 5 * time.Minute

var (
	ErrSignatureMismatch = errors.New("request signature mismatch")
	ErrTimestampTooOld   = errors.New("request timestamp outside tolerance")
)

// verifySignature checks a request signature of the form
// "v0=" + hex(HMAC-SHA256(secret, "v0:{timestamp}:{body}")) and rejects
// timestamps outside the replay tolerance. The comparison is constant
// time.
func verifySignature(
	secret string,
	timestamp string,
	body []byte,
	signature string,
	now time.Time,
) error {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrTimestampTooOld
	}
	skew := now.Sub(time.Unix(ts, 0))
	if skew > maxTimestampSkew || skew < -maxTimestampSkew {
		return ErrTimestampTooOld
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signatureVersion + ":" + timestamp + ":"))
	mac.Write(body)
	expected := signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
