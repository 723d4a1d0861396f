// Copyright 2025 Poiesic Systems
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


// Package ingest implements the document processing pipeline.
//
// A document's clean text is split by the segment package, each segment is
// enriched with an embedding plus best-effort summary and retrieval
// context, and the full batch is committed to storage in one transaction.
//
// # Concurrency
//
// Enrichment fans out over a bounded worker pool. The pool is the only
// shared state between workers; every result lands in its own index-keyed
// slot, so output order follows segment order no matter when workers
// finish. The concurrency limit exists to respect the generation service's
// rate limits, not for correctness.
//
// # Failure isolation
//
// An embedding failure is terminal for its segment only. A document is
// processed when at least one segment succeeded, failed when none did, and
// reverts to pending when cancelled mid-batch or when the final commit
// fails, leaving it safe to re-process.
package ingest
