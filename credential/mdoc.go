/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package credential

import (
	stdcrypto "crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/asn1"
	"encoding/base64"
	"fmt"
	"math/big"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nuts-foundation/openid4vci-issuer/crypto"
)

// coseAlgES256 is the COSE algorithm identifier for ECDSA P-256 with SHA-256.
const coseAlgES256 = -7

// encodedCBORTag is the CBOR tag for embedded CBOR data items (RFC8949).
const encodedCBORTag = 24

// IssuerSignedItem is a single disclosed data element of an mdoc namespace (ISO 18013-5).
type IssuerSignedItem struct {
	DigestID          uint        `cbor:"digestID"`
	Random            []byte      `cbor:"random"`
	ElementIdentifier string      `cbor:"elementIdentifier"`
	ElementValue      interface{} `cbor:"elementValue"`
}

// ValidityInfo carries the validity window of a MobileSecurityObject.
type ValidityInfo struct {
	Signed     time.Time `cbor:"signed"`
	ValidFrom  time.Time `cbor:"validFrom"`
	ValidUntil time.Time `cbor:"validUntil"`
}

// MobileSecurityObject is the signed digest structure of an mdoc (ISO 18013-5).
type MobileSecurityObject struct {
	Version         string                     `cbor:"version"`
	DigestAlgorithm string                     `cbor:"digestAlgorithm"`
	ValueDigests    map[string]map[uint][]byte `cbor:"valueDigests"`
	DocType         string                     `cbor:"docType"`
	ValidityInfo    ValidityInfo               `cbor:"validityInfo"`
}

// IssuerSigned is the issuer-signed part of an mdoc: the disclosed items per
// namespace and the COSE_Sign1 over the MobileSecurityObject.
type IssuerSigned struct {
	NameSpaces map[string][]cbor.RawMessage `cbor:"nameSpaces"`
	IssuerAuth cbor.RawMessage              `cbor:"issuerAuth"`
}

// SignMsoMdoc builds the IssuerSigned structure of an mdoc and returns it
// base64url-encoded. All claims end up as issuer-signed items in the given
// namespace, their digests are signed into the MobileSecurityObject via COSE_Sign1.
// The signing key must be an ECDSA P-256 key (alg ES256).
func SignMsoMdoc(key crypto.Key, docType string, namespace string, validity time.Duration, claims map[string]interface{}) (string, error) {
	if _, ok := key.Public().(*ecdsa.PublicKey); !ok {
		return "", fmt.Errorf("mdoc signing requires an ECDSA key")
	}

	items := make([]cbor.RawMessage, 0, len(claims))
	digests := map[uint][]byte{}
	var digestID uint
	for identifier, value := range claims {
		random := make([]byte, 16)
		if _, err := rand.Read(random); err != nil {
			return "", fmt.Errorf("unable to generate item random: %w", err)
		}
		itemBytes, err := cbor.Marshal(IssuerSignedItem{
			DigestID:          digestID,
			Random:            random,
			ElementIdentifier: identifier,
			ElementValue:      value,
		})
		if err != nil {
			return "", fmt.Errorf("unable to marshal item %s: %w", identifier, err)
		}
		taggedItem, err := cbor.Marshal(cbor.Tag{Number: encodedCBORTag, Content: itemBytes})
		if err != nil {
			return "", err
		}
		digest := sha256.Sum256(taggedItem)
		digests[digestID] = digest[:]
		items = append(items, taggedItem)
		digestID++
	}

	now := time.Now().UTC()
	mso := MobileSecurityObject{
		Version:         "1.0",
		DigestAlgorithm: "SHA-256",
		ValueDigests:    map[string]map[uint][]byte{namespace: digests},
		DocType:         docType,
		ValidityInfo: ValidityInfo{
			Signed:     now,
			ValidFrom:  now,
			ValidUntil: now.Add(validity),
		},
	}
	msoBytes, err := cbor.Marshal(mso)
	if err != nil {
		return "", fmt.Errorf("unable to marshal MSO: %w", err)
	}
	payload, err := cbor.Marshal(cbor.Tag{Number: encodedCBORTag, Content: msoBytes})
	if err != nil {
		return "", err
	}

	issuerAuth, err := coseSign1(key, payload)
	if err != nil {
		return "", err
	}

	issuerSigned, err := cbor.Marshal(IssuerSigned{
		NameSpaces: map[string][]cbor.RawMessage{namespace: items},
		IssuerAuth: issuerAuth,
	})
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(issuerSigned), nil
}

// coseSign1 signs the payload as an untagged COSE_Sign1 array (RFC9052).
func coseSign1(key crypto.Key, payload []byte) (cbor.RawMessage, error) {
	protected, err := cbor.Marshal(map[int64]interface{}{1: coseAlgES256})
	if err != nil {
		return nil, err
	}
	sigStructure, err := cbor.Marshal([]interface{}{"Signature1", protected, []byte{}, payload})
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(sigStructure)
	derSignature, err := key.Signer().Sign(rand.Reader, digest[:], stdcrypto.SHA256)
	if err != nil {
		return nil, fmt.Errorf("unable to sign MSO: %w", err)
	}
	signature, err := derToRawSignature(derSignature, key.Public().(*ecdsa.PublicKey))
	if err != nil {
		return nil, err
	}
	unprotected := map[int64]interface{}{4: []byte(key.KID())}
	return cbor.Marshal([]interface{}{protected, unprotected, payload, signature})
}

// derToRawSignature converts an ASN.1 DER encoded ECDSA signature to the
// fixed-size r||s encoding COSE requires.
func derToRawSignature(derSignature []byte, publicKey *ecdsa.PublicKey) ([]byte, error) {
	var parsed struct {
		R, S *big.Int
	}
	if _, err := asn1.Unmarshal(derSignature, &parsed); err != nil {
		return nil, fmt.Errorf("unable to parse ECDSA signature: %w", err)
	}
	keySize := (publicKey.Curve.Params().BitSize + 7) / 8
	signature := make([]byte, 2*keySize)
	parsed.R.FillBytes(signature[:keySize])
	parsed.S.FillBytes(signature[keySize:])
	return signature, nil
}
